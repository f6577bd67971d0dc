package ingest

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"lobbytrack-backend/services/listing"
)

// Candidate is one posting that needs its detail page downloaded.
type Candidate struct {
	ID   int
	Post listing.Post
}

// Discover collects postings whose page the store does not hold.
// the consolidated collection is preferred when present, it already
// has no duplicates; otherwise every dated snapshot JSON is scanned.
// unreadable files are skipped with a warning.
func (d *Driver) Discover(ctx context.Context) ([]Candidate, error) {
	files, err := d.sourceFiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		slog.InfoContext(ctx, "no snapshot json files found", "dir", d.opts.DataDir)
		return nil, nil
	}

	var out []Candidate
	seen := map[int]bool{}
	for _, file := range files {
		posts, err := readPosts(file)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable json", "file", file, "err", err)
			continue
		}
		for _, p := range posts {
			id, err := strconv.Atoi(p.PostID)
			if err != nil || p.URL == "" {
				continue
			}
			if seen[id] {
				continue
			}
			if !d.opts.Force && d.store.Exists(id) {
				continue
			}
			seen[id] = true
			out = append(out, Candidate{ID: id, Post: p})
		}
	}

	slog.InfoContext(ctx, "discovered new jobs", "count", len(out), "sources", len(files))
	return out, nil
}

const consolidatedName = "consolidated_unique.json"

func (d *Driver) sourceFiles(ctx context.Context) ([]string, error) {
	consolidated := filepath.Join(d.opts.DataDir, consolidatedName)
	if _, err := os.Stat(consolidated); err == nil {
		slog.DebugContext(ctx, "using consolidated collection", "file", consolidated)
		return []string{consolidated}, nil
	}

	var files []string
	err := filepath.WalkDir(d.opts.DataDir, func(path string, entry fs.DirEntry, err error) error {
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
	sort.Strings(files)
	return files, nil
}

// readPosts accepts both snapshot documents and the consolidated
// collection, they share the posts array.
func readPosts(path string) ([]listing.Post, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Posts []listing.Post `json:"posts"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return doc.Posts, nil
}
