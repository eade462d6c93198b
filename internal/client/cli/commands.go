package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dkravcenko/plotkeeper/internal/client/models"
	"github.com/dkravcenko/plotkeeper/internal/common"
)

// Status prints connectivity, queue depth and dead-letter totals.
func (a *App) Status(ctx context.Context) error {
	mode := "offline"
	if a.monitor.IsOnline() {
		mode = "online"
	}
	n, err := a.repos.Mutations.Len(ctx)
	if err != nil {
		fmt.Println("Error reading queue:", err)
		return err
	}
	fmt.Printf("Server: %s (%s)\n", a.config.ServerBaseURL, mode)
	fmt.Printf("Pending mutations: %d\n", n)
	fmt.Printf("Dead-lettered this session: %d\n", a.sync.DeadLetterCount())
	return nil
}

// Add prompts for record fields and stores a new record in the table.
func (a *App) Add(ctx context.Context, table string) error {
	fields, err := GetFields(a.reader, os.Stdout)
	if err != nil {
		return err
	}
	mutationID, err := a.records.Write(ctx, table, models.OpInsert, fields)
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	id, _ := fields.StringValue("id")
	fmt.Printf("Added (record queued for sync, mutation %s, id %s)\n", mutationID, id)
	return nil
}

// Edit overlays prompted fields onto the cached record and queues an update.
func (a *App) Edit(ctx context.Context, table, id string) error {
	current, err := a.records.Get(ctx, table, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			fmt.Println("No cached record with id", id)
		} else {
			fmt.Println("Error:", err)
		}
		return err
	}

	entered, err := GetFields(a.reader, os.Stdout)
	if err != nil {
		return err
	}

	payload := current.Fields.Clone()
	for k, v := range entered {
		payload[k] = v
	}
	payload["id"] = id

	if _, err := a.records.Write(ctx, table, models.OpUpdate, payload); err != nil {
		fmt.Println("Error:", err)
		return err
	}
	fmt.Println("Updated (queued for sync)")
	return nil
}

// Delete removes the cached record and queues the deletion.
func (a *App) Delete(ctx context.Context, table, id string) error {
	_, err := a.records.Write(ctx, table, models.OpDelete, models.Fields{"id": id})
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	fmt.Println("Deleted (queued for sync)")
	return nil
}

// List prints the cached records of a table, newest first.
func (a *App) List(ctx context.Context, table string) error {
	recs := a.records.List(ctx, table)
	if len(recs) == 0 {
		fmt.Println("No cached records in", table)
		return nil
	}
	for _, r := range recs {
		fmt.Printf("%s  %s  %s  %s\n", r.ID, r.UpdatedAt.Format("2006-01-02 15:04"), r.SyncStatus, summarize(r.Fields))
	}
	return nil
}

// Show prints every field of one cached record.
func (a *App) Show(ctx context.Context, table, id string) error {
	rec, err := a.records.Get(ctx, table, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			fmt.Println("No cached record with id", id)
		} else {
			fmt.Println("Error:", err)
		}
		return err
	}
	fmt.Printf("id: %s\nupdated_at: %s\nstatus: %s\n", rec.ID, rec.UpdatedAt.Format("2006-01-02 15:04:05"), rec.SyncStatus)
	for k, v := range rec.Fields {
		if k == "id" {
			continue
		}
		fmt.Printf("%s: %v\n", k, v)
	}
	return nil
}

// Sync runs a full push+pull cycle immediately.
func (a *App) Sync(ctx context.Context) error {
	stats, err := a.sync.SyncAll(ctx)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrOffline):
			fmt.Println("Cannot sync: server unreachable")
		case errors.Is(err, common.ErrSyncInProgress):
			fmt.Println("A sync cycle is already running")
		default:
			fmt.Println("Sync failed:", err)
		}
		return err
	}
	fmt.Printf("Synced: pushed %d (failed %d, dead-lettered %d), pulled %d, applied %d, kept local %d\n",
		stats.Pushed, stats.PushFailed, stats.DeadLettered, stats.Pulled, stats.Applied, stats.Skipped)
	return nil
}

// Push drains the mutation queue without pulling remote changes.
func (a *App) Push(ctx context.Context) error {
	stats, err := a.sync.ProcessQueueOnce(ctx)
	if err != nil {
		if errors.Is(err, common.ErrSyncInProgress) {
			fmt.Println("A sync cycle is already running")
		} else {
			fmt.Println("Push failed:", err)
		}
		return err
	}
	fmt.Printf("Pushed %d mutations (failed %d, dead-lettered %d)\n", stats.Pushed, stats.PushFailed, stats.DeadLettered)
	return nil
}

// Queue lists pending mutations in delivery order.
func (a *App) Queue(ctx context.Context) error {
	pending, err := a.repos.Mutations.ListPending(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	if len(pending) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}
	for _, m := range pending {
		line := fmt.Sprintf("%s  %s %s  retries=%d", m.CreatedAt.Format("15:04:05"), m.Op, m.Table, m.RetryCount)
		if m.LastError != "" {
			line += "  last error: " + m.LastError
		}
		fmt.Println(line)
	}
	return nil
}

// Clear drops every cached record of a table. Pending mutations are kept.
func (a *App) Clear(ctx context.Context, table string) error {
	if err := a.records.Clear(ctx, table); err != nil {
		fmt.Println("Error:", err)
		return err
	}
	fmt.Println("Cleared cached records in", table)
	return nil
}

// CacheAttachment downloads and caches an image for offline viewing.
func (a *App) CacheAttachment(ctx context.Context, ref string) error {
	blob, err := a.attachments.Cache(ctx, ref)
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	if blob.Width > 0 {
		fmt.Printf("Cached %s (%dx%d, %d bytes)\n", ref, blob.Width, blob.Height, len(blob.Data))
	} else {
		fmt.Printf("Cached %s (%d bytes)\n", ref, len(blob.Data))
	}
	return nil
}

// ClearCache drops all cached attachments.
func (a *App) ClearCache(ctx context.Context) error {
	if err := a.attachments.Clear(ctx); err != nil {
		fmt.Println("Error:", err)
		return err
	}
	fmt.Println("Attachment cache cleared")
	return nil
}

// summarize renders a short one-line preview of a record's fields.
func summarize(fields models.Fields) string {
	for _, key := range []string{"title", "name", "body", "caption", "url"} {
		if v, ok := fields.StringValue(key); ok && v != "" {
			if len(v) > 40 {
				v = v[:40] + "..."
			}
			return v
		}
	}
	return fmt.Sprintf("%d fields", len(fields))
}
