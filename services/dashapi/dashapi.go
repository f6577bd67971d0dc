// Package dashapi generates the static JSON files the dashboard
// browses: an index of available snapshot/metadata documents and an
// index of validly downloaded job pages.
package dashapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	pathpkg "path"
	"path/filepath"
	"sort"
	"strings"

	"lobbytrack-backend/lib/pagestore"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("lobbytrack.dashapi")

// FileEntry describes one snapshot document for the dashboard, which
// reads the path, the filename stem and the containing directory off
// every entry.
type FileEntry struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Date string `json:"date"`
}

type FileIndex struct {
	Files []FileEntry `json:"files"`
	Count int         `json:"count"`
}

const consolidatedName = "consolidated_unique.json"

// WriteFileIndex lists every JSON document under dataDir, newest
// first, into <apiDir>/list-json-files.json. the consolidated file is
// excluded so the dashboard does not mistake it for a dated snapshot.
func WriteFileIndex(ctx context.Context, dataDir, apiDir string) (FileIndex, error) {
	ctx, span := tracer.Start(ctx, "WriteFileIndex")
	defer span.End()

	parent := filepath.Dir(dataDir)
	var files []FileEntry
	err := filepath.WalkDir(dataDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			return nil
		}
		if entry.Name() == consolidatedName {
			return nil
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		files = append(files, FileEntry{
			Path: rel,
			Name: strings.TrimSuffix(entry.Name(), ".json"),
			Date: pathpkg.Dir(rel),
		})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return FileIndex{}, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path > files[j].Path })

	index := FileIndex{Files: files, Count: len(files)}
	if err := writeJSON(filepath.Join(apiDir, "list-json-files.json"), index); err != nil {
		return FileIndex{}, err
	}
	slog.InfoContext(ctx, "generated file index", "count", index.Count)
	return index, nil
}

type DownloadedEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type DownloadedIndex struct {
	Downloaded map[string]DownloadedEntry `json:"downloaded"`
	Count      int                        `json:"count"`
}

// WriteDownloadedIndex lists the job pages that pass the store's
// validity gate into <apiDir>/downloaded-jobs.json. paths are rooted
// at /data the way the dashboard serves them.
func WriteDownloadedIndex(ctx context.Context, store pagestore.Filesystem, dataDir, apiDir string) (DownloadedIndex, error) {
	ctx, span := tracer.Start(ctx, "WriteDownloadedIndex")
	defer span.End()

	ids, err := store.List()
	if err != nil {
		return DownloadedIndex{}, err
	}

	index := DownloadedIndex{Downloaded: map[string]DownloadedEntry{}}
	for _, id := range ids {
		if !store.Exists(id) {
			continue
		}
		path := store.Path(id)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			continue
		}
		index.Downloaded[fmt.Sprintf("%d", id)] = DownloadedEntry{
			Path: "/data/" + filepath.ToSlash(rel),
			Size: info.Size(),
		}
	}
	index.Count = len(index.Downloaded)

	if err := writeJSON(filepath.Join(apiDir, "downloaded-jobs.json"), index); err != nil {
		return DownloadedIndex{}, err
	}
	slog.InfoContext(ctx, "generated downloaded-jobs index", "count", index.Count)
	return index, nil
}

func writeJSON(path string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
