package jobdetail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"lobbytrack-backend/lib/pagestore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("lobbytrack.jobdetail")

// Metadata is the derived summary stored beside each job page. it is a
// cache: regenerable from the HTML at any time, never a source of
// truth.
type Metadata struct {
	PostID       int    `json:"post_id"`
	URL          string `json:"url"`
	Position     string `json:"position"`
	UnitName     string `json:"unit_name"`
	Status       string `json:"status"`
	IsClosed     bool   `json:"is_closed"`
	Content      string `json:"content"`
	DownloadedAt string `json:"downloaded_at"`
}

// Hints carries listing-derived fields for a freshly downloaded job.
// metadata regenerated later from disk has no listing context and
// falls back to the defaults.
type Hints struct {
	URL      string
	Position string
	UnitName string
}

// Generate builds metadata from the stored page for one id.
func Generate(store pagestore.Filesystem, id int, hints Hints) (Metadata, error) {
	body, err := store.Get(id)
	if err != nil {
		return Metadata{}, fmt.Errorf("read job page %d: %w", id, err)
	}
	html := string(body)

	md := Metadata{
		PostID:   id,
		URL:      hints.URL,
		Position: hints.Position,
		UnitName: hints.UnitName,
		IsClosed: IsClosed(html),
		Content:  ExtractContent(html),
	}
	if md.Position == "" {
		md.Position = "Unknown"
	}
	if md.UnitName == "" {
		md.UnitName = "Unknown"
	}
	if md.IsClosed {
		md.Status = "closed"
	} else {
		md.Status = "open"
	}

	if info, err := os.Stat(store.Path(id)); err == nil {
		md.DownloadedAt = strconv.FormatInt(info.ModTime().Unix(), 10)
	}

	return md, nil
}

// Write stores the metadata JSON at its canonical path.
func Write(store pagestore.Filesystem, md Metadata) error {
	body, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(store.MetadataPath(md.PostID), body, 0o644)
}

// GenerateAll regenerates metadata for every stored job page. ids
// whose metadata file already exists are skipped unless force is set.
// per-item failures are counted, never propagated, so the pass is safe
// to repeat after any partial run.
func GenerateAll(ctx context.Context, store pagestore.Filesystem, force bool) (generated, skipped, failed int) {
	ctx, span := tracer.Start(ctx, "GenerateAll")
	defer span.End()

	ids, err := store.List()
	if err != nil {
		slog.WarnContext(ctx, "failed to walk job pages", "err", err)
		return 0, 0, 0
	}
	if len(ids) == 0 {
		return 0, 0, 0
	}
	slog.DebugContext(ctx, "generating metadata", "jobs", len(ids))

	for _, id := range ids {
		if !force {
			if _, err := os.Stat(store.MetadataPath(id)); err == nil {
				skipped++
				continue
			}
		}
		md, err := Generate(store, id, Hints{})
		if err != nil {
			slog.DebugContext(ctx, "failed to generate metadata", "post_id", id, "err", err)
			failed++
			continue
		}
		if err := Write(store, md); err != nil {
			slog.DebugContext(ctx, "failed to write metadata", "post_id", id, "err", err)
			failed++
			continue
		}
		generated++
	}

	span.SetAttributes(
		attribute.Int("generated", generated),
		attribute.Int("skipped", skipped),
		attribute.Int("failed", failed),
	)
	return generated, skipped, failed
}
