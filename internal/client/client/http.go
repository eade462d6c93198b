package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dkravcenko/plotkeeper/internal/client/models"
	"github.com/sethvargo/go-retry"
)

// wireRecord is the JSON shape of one record on the wire.
type wireRecord struct {
	ID        string        `json:"id"`
	Fields    models.Fields `json:"fields"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (w *wireRecord) toModel() models.CachedRecord {
	return models.CachedRecord{
		ID:         w.ID,
		Fields:     w.Fields,
		UpdatedAt:  w.UpdatedAt,
		SyncStatus: models.SyncStatusSynced,
	}
}

type pullResponse struct {
	Records []wireRecord `json:"records"`
	Cursor  string       `json:"cursor"`
}

type insertRequest struct {
	ClientID string        `json:"client_id"`
	Record   models.Fields `json:"record"`
}

type updateRequest struct {
	Record models.Fields `json:"record"`
}

// HTTPRemote implements Remote over a JSON HTTP API:
//
//	GET    {base}/api/health
//	GET    {base}/api/{table}?since={cursor}
//	POST   {base}/api/{table}
//	PUT    {base}/api/{table}/{id}
//	DELETE {base}/api/{table}/{id}
type HTTPRemote struct {
	baseURL string
	http    *http.Client

	// backoff settings for read-side retries
	retryBase time.Duration
	retryMax  uint64
}

// NewHTTPRemote returns a remote bound to baseURL. The supplied client's
// timeout is the per-call timeout required by the transport layer; if client
// is nil a 10s-timeout default is used.
func NewHTTPRemote(baseURL string, client *http.Client) *HTTPRemote {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPRemote{
		baseURL:   baseURL,
		http:      client,
		retryBase: 200 * time.Millisecond,
		retryMax:  2,
	}
}

func (r *HTTPRemote) Ping(ctx context.Context) error {
	backoff := retry.WithMaxRetries(r.retryMax, retry.NewExponential(r.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.doJSON(ctx, http.MethodGet, r.baseURL+"/api/health", nil, nil)
		return markRetryable(err)
	})
}

func (r *HTTPRemote) Pull(ctx context.Context, table string, sinceCursor string) ([]models.CachedRecord, string, error) {
	u := fmt.Sprintf("%s/api/%s", r.baseURL, url.PathEscape(table))
	if sinceCursor != "" {
		u += "?since=" + url.QueryEscape(sinceCursor)
	}

	var resp pullResponse
	backoff := retry.WithMaxRetries(r.retryMax, retry.NewExponential(r.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp = pullResponse{}
		return markRetryable(r.doJSON(ctx, http.MethodGet, u, nil, &resp))
	})
	if err != nil {
		return nil, "", fmt.Errorf("pull %s: %w", table, err)
	}

	records := make([]models.CachedRecord, 0, len(resp.Records))
	for i := range resp.Records {
		records = append(records, resp.Records[i].toModel())
	}
	return records, resp.Cursor, nil
}

func (r *HTTPRemote) Insert(ctx context.Context, table string, clientID string, payload models.Fields) (*models.CachedRecord, error) {
	u := fmt.Sprintf("%s/api/%s", r.baseURL, url.PathEscape(table))

	var out wireRecord
	err := r.doJSON(ctx, http.MethodPost, u, insertRequest{ClientID: clientID, Record: payload}, &out)
	if err != nil {
		// The server deduplicates by client id: a conflict means this
		// mutation was already applied on a previous attempt.
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusConflict {
			id, _ := payload.StringValue("id")
			rec := models.CachedRecord{ID: id, Fields: payload, SyncStatus: models.SyncStatusSynced}
			return &rec, nil
		}
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}

	rec := out.toModel()
	return &rec, nil
}

func (r *HTTPRemote) Update(ctx context.Context, table string, id string, payload models.Fields) (*models.CachedRecord, error) {
	u := fmt.Sprintf("%s/api/%s/%s", r.baseURL, url.PathEscape(table), url.PathEscape(id))

	var out wireRecord
	if err := r.doJSON(ctx, http.MethodPut, u, updateRequest{Record: payload}, &out); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", table, id, err)
	}

	rec := out.toModel()
	return &rec, nil
}

func (r *HTTPRemote) Delete(ctx context.Context, table string, id string) error {
	u := fmt.Sprintf("%s/api/%s/%s", r.baseURL, url.PathEscape(table), url.PathEscape(id))

	err := r.doJSON(ctx, http.MethodDelete, u, nil, nil)
	if err != nil {
		// Deleting a record the server never saw (or already deleted) is
		// success from the queue's point of view.
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	return nil
}

// doJSON performs one request and decodes a JSON response into out (when out
// is non-nil). Network failures and 5xx map to ErrUnavailable, other non-2xx
// to ErrRejected.
func (r *HTTPRemote) doJSON(ctx context.Context, method, u string, in any, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{code: resp.StatusCode, body: string(b)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// statusError carries a non-2xx response and unwraps to the matching
// sentinel so callers can keep using errors.Is.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error {
	if e.code >= 500 {
		return ErrUnavailable
	}
	return ErrRejected
}

// markRetryable tags transient errors so the read-side backoff retries them;
// permanent refusals pass through untouched.
func markRetryable(err error) error {
	if err == nil {
		return nil
	}
	var se *statusError
	if errors.As(err, &se) && se.code < 500 {
		return err
	}
	return retry.RetryableError(err)
}
