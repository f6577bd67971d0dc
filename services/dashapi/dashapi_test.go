package dashapi

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"lobbytrack-backend/lib/pagestore"
	"lobbytrack-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

const validPage = `<!DOCTYPE html><html><head><meta charset="utf-8"></head><body>Test</body></html>`

func TestWriteFileIndex(t *testing.T) {
	res, cleanup := testutil.Setup(t, testutil.SetupParams{Name: "dashapi.WriteFileIndex"})
	defer cleanup()

	res.WriteFile(t, "data/2025/12/09/output_120000.json", "{}")
	res.WriteFile(t, "data/2025/12/10/output_120000.json", "{}")
	res.WriteFile(t, "data/consolidated_unique.json", "{}")
	res.WriteFile(t, "data/2025/12/10/output_120000.html", "<html></html>")

	dataDir := filepath.Join(res.Root, "data")
	apiDir := filepath.Join(res.Root, "api")

	index, err := WriteFileIndex(context.Background(), dataDir, apiDir)
	require.NoError(t, err)

	// newest first, consolidated and non-json files excluded
	require.Equal(t, []FileEntry{
		{
			Path: "data/2025/12/10/output_120000.json",
			Name: "output_120000",
			Date: "data/2025/12/10",
		},
		{
			Path: "data/2025/12/09/output_120000.json",
			Name: "output_120000",
			Date: "data/2025/12/09",
		},
	}, index.Files)
	require.Equal(t, 2, index.Count)

	body, err := os.ReadFile(filepath.Join(apiDir, "list-json-files.json"))
	require.NoError(t, err)
	var onDisk FileIndex
	require.NoError(t, json.Unmarshal(body, &onDisk))
	require.Equal(t, index, onDisk)

	// each entry must be an object carrying the keys the dashboard reads
	var generic struct {
		Files []map[string]any `json:"files"`
	}
	require.NoError(t, json.Unmarshal(body, &generic))
	for _, entry := range generic.Files {
		require.Contains(t, entry, "path")
		require.Contains(t, entry, "name")
		require.Contains(t, entry, "date")
	}
}

func TestWriteDownloadedIndex(t *testing.T) {
	res, cleanup := testutil.Setup(t, testutil.SetupParams{Name: "dashapi.WriteDownloadedIndex"})
	defer cleanup()

	dataDir := filepath.Join(res.Root, "data")
	apiDir := filepath.Join(res.Root, "api")
	store := pagestore.NewFilesystem(filepath.Join(dataDir, "job-pages"))

	require.NoError(t, store.Put(100001, []byte(validPage)))
	// an interrupted download must not appear in the index
	require.NoError(t, store.Put(100002, []byte("<!DOC")))

	index, err := WriteDownloadedIndex(context.Background(), store, dataDir, apiDir)
	require.NoError(t, err)
	require.Equal(t, 1, index.Count)

	entry, ok := index.Downloaded["100001"]
	require.True(t, ok)
	require.Equal(t, "/data/job-pages/100/001/job_100001.html", entry.Path)
	require.EqualValues(t, len(validPage), entry.Size)

	_, ok = index.Downloaded["100002"]
	require.False(t, ok)

	body, err := os.ReadFile(filepath.Join(apiDir, "downloaded-jobs.json"))
	require.NoError(t, err)
	var onDisk DownloadedIndex
	require.NoError(t, json.Unmarshal(body, &onDisk))
	require.Equal(t, 1, onDisk.Count)
}

func TestWriteFileIndexMissingDataDir(t *testing.T) {
	res, cleanup := testutil.Setup(t, testutil.SetupParams{Name: "dashapi.MissingDataDir"})
	defer cleanup()

	index, err := WriteFileIndex(context.Background(),
		filepath.Join(res.Root, "data"), filepath.Join(res.Root, "api"))
	require.NoError(t, err)
	require.Equal(t, 0, index.Count)
}
