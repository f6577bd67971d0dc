package listing

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lobbytrack-backend/lib/testutil"
	"lobbytrack-backend/services/runstats"

	"github.com/stretchr/testify/require"
)

func TestParseTree(t *testing.T) {
	res, cleanup := testutil.Setup(t, testutil.SetupParams{Name: "listing.ParseTree"})
	defer cleanup()

	dataDir := filepath.Join(res.Root, "data")
	res.WriteFile(t, "data/2025/12/10/output_120000.html", listingPage)
	res.WriteFile(t, "data/2025/12/10/output_130000.html",
		`<html><body><div id="header"></div></body></html>`)
	// files under job-pages must never be treated as snapshots
	res.WriteFile(t, "data/job-pages/000/001/output_999999.html", listingPage)

	statsLog := runstats.NewLog(filepath.Join(res.Root, "logs", "cron_stats.jsonl"))

	parsed, err := ParseTree(context.Background(), dataDir, statsLog)
	require.NoError(t, err)
	require.Equal(t, 2, parsed.FilesFound)
	require.Equal(t, 1, parsed.FilesProcessed)
	require.Equal(t, 2, parsed.PostsExtracted)

	// sibling JSON written only for the snapshot that yielded posts
	body, err := os.ReadFile(filepath.Join(dataDir, "2025", "12", "10", "output_120000.json"))
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	require.Equal(t, filepath.Join("2025", "12", "10", "output_120000.html"), snap.SourceFile)
	require.Equal(t, 2, snap.PostCount)
	require.Len(t, snap.Posts, 2)

	_, err = os.Stat(filepath.Join(dataDir, "2025", "12", "10", "output_130000.json"))
	require.True(t, os.IsNotExist(err))

	events, err := statsLog.Tail(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 2, events[0].ParsedJobs)
}

func TestParseTreeEmptyDir(t *testing.T) {
	res, cleanup := testutil.Setup(t, testutil.SetupParams{
		Name: "listing.ParseTreeEmptyDir",
		Dirs: []string{"data"},
	})
	defer cleanup()

	statsLog := runstats.NewLog(filepath.Join(res.Root, "logs", "cron_stats.jsonl"))
	parsed, err := ParseTree(context.Background(), filepath.Join(res.Root, "data"), statsLog)
	require.NoError(t, err)
	require.Equal(t, 0, parsed.FilesFound)
}

func TestFreshSnapshot(t *testing.T) {
	res, cleanup := testutil.Setup(t, testutil.SetupParams{Name: "listing.FreshSnapshot"})
	defer cleanup()

	dataDir := filepath.Join(res.Root, "data")
	path := res.WriteFile(t, "data/2025/12/10/output_120000.html", listingPage)

	got, ok := FreshSnapshot(dataDir, time.Hour)
	require.True(t, ok)
	require.Equal(t, path, got)

	// a capture older than the window is stale
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	_, ok = FreshSnapshot(dataDir, time.Hour)
	require.False(t, ok)

	// window <= 0 disables the cache
	_, ok = FreshSnapshot(dataDir, 0)
	require.False(t, ok)
}
