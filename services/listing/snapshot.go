package listing

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lobbytrack-backend/services/runstats"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("lobbytrack.listing")

// Snapshot is the per-capture JSON written beside each listing HTML
// file.
type Snapshot struct {
	SourceFile string `json:"source_file"`
	ParsedAt   string `json:"parsed_at"`
	PostCount  int    `json:"post_count"`
	Posts      []Post `json:"posts"`
}

type ParseResult struct {
	FilesFound     int
	FilesProcessed int
	PostsExtracted int
	PostsFailed    int
}

// snapshotFiles finds the date-partitioned listing captures under the
// data dir. job detail pages live under their own subtree and are not
// snapshots.
func snapshotFiles(dataDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "job-pages" {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "output_") && strings.HasSuffix(name, ".html") {
			files = append(files, path)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ParseTree parses every listing snapshot under dataDir into a sibling
// JSON document and appends a parse event to the stats log. a snapshot
// that yields no posts produces no JSON file. unreadable snapshots are
// logged and skipped.
func ParseTree(ctx context.Context, dataDir string, statsLog runstats.Log) (ParseResult, error) {
	ctx, span := tracer.Start(ctx, "ParseTree")
	defer span.End()

	var res ParseResult

	files, err := snapshotFiles(dataDir)
	if err != nil {
		return res, err
	}
	res.FilesFound = len(files)
	if len(files) == 0 {
		slog.InfoContext(ctx, "no listing snapshots found", "dir", dataDir)
		return res, nil
	}
	slog.InfoContext(ctx, "parsing listing snapshots", "count", len(files))

	for _, htmlPath := range files {
		f, err := os.Open(htmlPath)
		if err != nil {
			slog.WarnContext(ctx, "failed to open snapshot", "file", htmlPath, "err", err)
			continue
		}
		posts, failed, err := ParseListing(f)
		f.Close()
		res.PostsFailed += failed
		if err != nil {
			slog.WarnContext(ctx, "failed to parse snapshot", "file", htmlPath, "err", err)
			continue
		}
		if len(posts) == 0 {
			slog.DebugContext(ctx, "no posts in snapshot", "file", htmlPath)
			continue
		}

		rel, err := filepath.Rel(dataDir, htmlPath)
		if err != nil {
			rel = htmlPath
		}
		snap := Snapshot{
			SourceFile: rel,
			ParsedAt:   time.Now().Format(time.RFC3339),
			PostCount:  len(posts),
			Posts:      posts,
		}
		jsonPath := strings.TrimSuffix(htmlPath, ".html") + ".json"
		if err := writeSnapshot(jsonPath, snap); err != nil {
			slog.WarnContext(ctx, "failed to write snapshot json", "file", jsonPath, "err", err)
			continue
		}

		slog.DebugContext(ctx, "extracted posts", "file", rel, "count", len(posts))
		res.FilesProcessed++
		res.PostsExtracted += len(posts)
	}

	span.SetAttributes(
		attribute.Int("files", res.FilesProcessed),
		attribute.Int("posts", res.PostsExtracted),
	)

	err = statsLog.AppendParse(ctx, res.PostsExtracted)
	if err != nil {
		slog.ErrorContext(ctx, "failed to write parse stats", "err", err)
	}

	return res, nil
}

func writeSnapshot(path string, snap Snapshot) error {
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}

// FreshSnapshot reports the newest listing capture younger than the
// cache window, if any. the external fetcher uses this to skip a
// re-fetch; window <= 0 disables the cache entirely.
func FreshSnapshot(dataDir string, window time.Duration) (string, bool) {
	if window <= 0 {
		return "", false
	}
	files, err := snapshotFiles(dataDir)
	if err != nil || len(files) == 0 {
		return "", false
	}

	newest := ""
	var newestTime time.Time
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if info.ModTime().After(newestTime) {
			newestTime = info.ModTime()
			newest = f
		}
	}
	if newest == "" || time.Since(newestTime) >= window {
		return "", false
	}
	return newest, true
}
