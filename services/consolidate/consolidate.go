// Package consolidate merges every snapshot's postings into one
// deduplicated collection.
package consolidate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lobbytrack-backend/services/listing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("lobbytrack.consolidate")

// Policy selects which sighting of a recurring post id wins.
//
// keep-first reproduces the historical behavior: the record from the
// earliest snapshot is kept and later status transitions are lost.
// keep-last takes the newest record (same position in the output),
// keep-history keeps the first record and attaches the full sighting
// timeline per id.
type Policy string

const (
	KeepFirst   Policy = "keep-first"
	KeepLast    Policy = "keep-last"
	KeepHistory Policy = "keep-history"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case KeepFirst, KeepLast, KeepHistory:
		return Policy(s), nil
	case "":
		return KeepFirst, nil
	}
	return "", fmt.Errorf("unknown merge policy %q", s)
}

// Sighting is one appearance of a post id in a dated snapshot.
type Sighting struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

// Collection is the consolidated output document.
type Collection struct {
	GeneratedAt     string                `json:"generated_at"`
	TotalUniqueJobs int                   `json:"total_unique_jobs"`
	Posts           []listing.Post        `json:"posts"`
	History         map[string][]Sighting `json:"history,omitempty"`
}

type TopEntry struct {
	PostID   string
	Position string
	Count    int
}

// Report is the duplication statistics for one consolidation pass.
type Report struct {
	TotalMentions int
	UniqueJobs    int
	Duplicates    int
	Top           []TopEntry
}

func (r Report) Ratio() float64 {
	if r.TotalMentions == 0 {
		return 0
	}
	return float64(r.Duplicates) / float64(r.TotalMentions)
}

type Options struct {
	// overwrite an existing consolidated file
	Force  bool
	Policy Policy
	// entries in the duplication report's most-repeated list
	TopN int
}

const outputName = "consolidated_unique.json"

var ErrExists = errors.New("consolidated file already exists")

// Consolidate reads every dated snapshot JSON under dataDir in
// chronological order and writes the deduplicated collection. it
// refuses to overwrite an existing output unless forced, and skips
// unreadable source files with a warning. re-running is idempotent.
func Consolidate(ctx context.Context, dataDir string, opts Options) (Collection, Report, error) {
	ctx, span := tracer.Start(ctx, "Consolidate")
	defer span.End()

	if opts.Policy == "" {
		opts.Policy = KeepFirst
	}
	if opts.TopN == 0 {
		opts.TopN = 5
	}

	outPath := filepath.Join(dataDir, outputName)
	if _, err := os.Stat(outPath); err == nil && !opts.Force {
		return Collection{}, Report{}, ErrExists
	}

	files, err := snapshotJSONs(dataDir)
	if err != nil {
		return Collection{}, Report{}, err
	}
	if len(files) == 0 {
		slog.InfoContext(ctx, "no snapshot json files to consolidate", "dir", dataDir)
		return Collection{}, Report{}, nil
	}
	slog.InfoContext(ctx, "consolidating snapshots", "files", len(files))

	coll, report := merge(ctx, dataDir, files, opts)

	body, err := json.MarshalIndent(coll, "", "  ")
	if err != nil {
		return Collection{}, Report{}, err
	}
	if err := os.WriteFile(outPath, body, 0o644); err != nil {
		return Collection{}, Report{}, err
	}

	span.SetAttributes(
		attribute.Int("unique", report.UniqueJobs),
		attribute.Int("duplicates", report.Duplicates),
	)
	slog.InfoContext(ctx, "wrote consolidated collection",
		"file", outPath, "unique", report.UniqueJobs)
	return coll, report, nil
}

func merge(ctx context.Context, dataDir string, files []string, opts Options) (Collection, Report) {
	index := map[string]int{}
	counts := map[string]int{}
	var posts []listing.Post
	var history map[string][]Sighting
	if opts.Policy == KeepHistory {
		history = map[string][]Sighting{}
	}
	mentions := 0

	for _, file := range files {
		snap, err := readSnapshot(file)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable snapshot", "file", file, "err", err)
			continue
		}
		date := dateFromPath(dataDir, file)
		for _, p := range snap.Posts {
			if p.PostID == "" {
				continue
			}
			mentions++
			counts[p.PostID]++

			if history != nil {
				history[p.PostID] = append(history[p.PostID], Sighting{
					Date:   date,
					Status: p.Status,
				})
			}

			at, dup := index[p.PostID]
			if !dup {
				index[p.PostID] = len(posts)
				posts = append(posts, p)
				continue
			}
			if opts.Policy == KeepLast {
				// newest sighting wins but keeps its first-seen slot
				posts[at] = p
			}
		}
	}

	coll := Collection{
		GeneratedAt:     time.Now().Format(time.RFC3339),
		TotalUniqueJobs: len(posts),
		Posts:           posts,
		History:         history,
	}
	report := Report{
		TotalMentions: mentions,
		UniqueJobs:    len(posts),
		Duplicates:    mentions - len(posts),
		Top:           topRepeated(posts, counts, opts.TopN),
	}
	return coll, report
}

func topRepeated(posts []listing.Post, counts map[string]int, n int) []TopEntry {
	positions := map[string]string{}
	for _, p := range posts {
		positions[p.PostID] = p.Position
	}

	entries := make([]TopEntry, 0, len(counts))
	for id, count := range counts {
		entries = append(entries, TopEntry{
			PostID:   id,
			Position: positions[id],
			Count:    count,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].PostID < entries[j].PostID
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func snapshotJSONs(dataDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dataDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if entry.Name() == "job-pages" {
				return filepath.SkipDir
			}
			return nil
		}
		name := entry.Name()
		if strings.HasPrefix(name, "output_") && strings.HasSuffix(name, ".json") {
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
	// path order is chronological, the tree is YYYY/MM/DD
	sort.Strings(files)
	return files, nil
}

func readSnapshot(path string) (listing.Snapshot, error) {
	var snap listing.Snapshot
	body, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// dateFromPath recovers YYYY-MM-DD from the snapshot's position in the
// date-partitioned tree.
func dateFromPath(dataDir, file string) string {
	rel, err := filepath.Rel(dataDir, file)
	if err != nil {
		return "unknown"
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 4 {
		return "unknown"
	}
	return fmt.Sprintf("%s-%s-%s", parts[0], parts[1], parts[2])
}
