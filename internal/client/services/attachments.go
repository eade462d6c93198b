package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dkravcenko/plotkeeper/internal/client/client"
	"github.com/dkravcenko/plotkeeper/internal/client/models"
	"github.com/dkravcenko/plotkeeper/internal/client/repositories/blobs"
	"github.com/dkravcenko/plotkeeper/internal/common"
	"github.com/dkravcenko/plotkeeper/internal/dbx"
	"github.com/dkravcenko/plotkeeper/internal/logging"
	"github.com/google/uuid"
)

const (
	// Photos are resized to at most this edge before caching.
	maxImageEdge = 1600
	jpegQuality  = 80
)

// AttachmentService caches compressed binary payloads (photos) keyed by
// their source reference, separate from record storage. The cache holds at
// most maxBlobs entries; beyond that the oldest are evicted.
type AttachmentService struct {
	repos    *client.Repositories
	http     *http.Client
	logger   logging.Logger
	maxBlobs int
}

func NewAttachmentService(repos *client.Repositories, httpClient *http.Client, logger logging.Logger, maxBlobs int) *AttachmentService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &AttachmentService{repos: repos, http: httpClient, logger: logger, maxBlobs: maxBlobs}
}

// Get returns a cached blob without any network access, or
// common.ErrNotFound when the reference was never cached.
func (s *AttachmentService) Get(ctx context.Context, sourceRef string) (*models.AttachmentBlob, error) {
	return s.repos.Blobs.GetBySourceRef(ctx, sourceRef)
}

// Cache returns the blob for sourceRef, fetching, compressing and storing it
// on a miss. Storing and evicting happen in one transaction so the cache
// never exceeds its bound.
func (s *AttachmentService) Cache(ctx context.Context, sourceRef string) (*models.AttachmentBlob, error) {
	cached, err := s.repos.Blobs.GetBySourceRef(ctx, sourceRef)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	raw, err := s.fetch(ctx, sourceRef)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attachment %q: %w", sourceRef, err)
	}

	blob := s.compress(ctx, sourceRef, raw)

	err = dbx.WithTx(ctx, s.repos.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := blobs.NewSQLiteRepository(tx)
		if err := repo.Put(ctx, blob); err != nil {
			return err
		}
		evicted, err := repo.Evict(ctx, s.maxBlobs)
		if err != nil {
			return err
		}
		if evicted > 0 {
			s.logger.Debug(ctx, "evicted old attachments", "count", evicted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Clear drops every cached attachment.
func (s *AttachmentService) Clear(ctx context.Context) error {
	return s.repos.Blobs.Clear(ctx)
}

// fetch loads the payload from an http(s) URL or a local file path.
func (s *AttachmentService) fetch(ctx context.Context, sourceRef string) ([]byte, error) {
	if !strings.HasPrefix(sourceRef, "http://") && !strings.HasPrefix(sourceRef, "https://") {
		return os.ReadFile(strings.TrimPrefix(sourceRef, "file://"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceRef, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// compress recompresses image payloads: anything decodable is fitted into
// maxImageEdge and re-encoded as JPEG. Payloads that are not images are
// stored as-is.
func (s *AttachmentService) compress(ctx context.Context, sourceRef string, raw []byte) *models.AttachmentBlob {
	blob := &models.AttachmentBlob{
		ID:        uuid.NewString(),
		SourceRef: sourceRef,
		Data:      raw,
		CachedAt:  time.Now().UTC(),
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		s.logger.Debug(ctx, "attachment is not an image, caching raw bytes", "source_ref", sourceRef)
		return blob
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxImageEdge || bounds.Dy() > maxImageEdge {
		img = imaging.Fit(img, maxImageEdge, maxImageEdge, imaging.Lanczos)
		bounds = img.Bounds()
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		s.logger.Warn(ctx, "failed to re-encode attachment, caching original", "source_ref", sourceRef, "error", err)
		return blob
	}

	blob.Data = buf.Bytes()
	blob.ContentType = "image/jpeg"
	blob.Width = bounds.Dx()
	blob.Height = bounds.Dy()
	return blob
}
