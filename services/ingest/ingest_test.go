package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"lobbytrack-backend/lib/pagestore"
	"lobbytrack-backend/lib/testutil"
	"lobbytrack-backend/services/listing"
	"lobbytrack-backend/services/runstats"

	"github.com/stretchr/testify/require"
)

const jobPage = `<!DOCTYPE html><html><head><meta charset="utf-8"></head>
<body><main><p>Шукаємо стрільця</p></main></body></html>`

type harness struct {
	res      testutil.SetupResult
	server   *httptest.Server
	requests atomic.Int64
	store    pagestore.Filesystem
	stats    runstats.Log
}

func newHarness(t *testing.T, name string) (*harness, func()) {
	res, cleanup := testutil.Setup(t, testutil.SetupParams{Name: name})

	h := &harness{res: res}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.requests.Add(1)
		if r.URL.Path == "/job/100404/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, jobPage)
	}))
	h.store = pagestore.NewFilesystem(filepath.Join(res.Root, "data", "job-pages"))
	h.stats = runstats.NewLog(filepath.Join(res.Root, "logs", "cron_stats.jsonl"))

	return h, func() {
		h.server.Close()
		cleanup()
	}
}

func (h *harness) writeSnapshot(t *testing.T, rel string, ids ...string) {
	t.Helper()
	posts := make([]listing.Post, len(ids))
	for i, id := range ids {
		posts[i] = listing.Post{
			PostID:   id,
			URL:      h.server.URL + "/job/" + id + "/",
			Position: "Rifleman",
			UnitName: "72nd Brigade",
			Status:   listing.StatusOpen,
		}
	}
	snap := listing.Snapshot{PostCount: len(posts), Posts: posts}
	body, err := json.Marshal(snap)
	require.NoError(t, err)
	h.res.WriteFile(t, rel, string(body))
}

func (h *harness) driver(opts Options) *Driver {
	opts.DataDir = filepath.Join(h.res.Root, "data")
	if opts.PerSecond == 0 {
		// tests should not wait on the polite production rate
		opts.PerSecond = 1000
	}
	return NewDriver(opts, h.store, h.stats)
}

func TestRunDownloadsAndCaches(t *testing.T) {
	h, cleanup := newHarness(t, "ingest.RunDownloadsAndCaches")
	defer cleanup()
	h.writeSnapshot(t, "data/2025/12/10/output_120000.json", "100001", "100002")

	d := h.driver(Options{})
	res, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.NewJobsFound)
	require.Equal(t, 2, res.Successful)
	require.Equal(t, 0, res.Failed)
	require.EqualValues(t, 2, h.requests.Load())

	require.True(t, h.store.Exists(100001))
	require.True(t, h.store.Exists(100002))

	// metadata was written with listing hints during the fetch
	var md struct {
		Position string `json:"position"`
		Status   string `json:"status"`
	}
	body, err := h.store.Get(100001)
	require.NoError(t, err)
	require.Contains(t, string(body), "Шукаємо")
	raw, err := os.ReadFile(h.store.MetadataPath(100001))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &md))
	require.Equal(t, "Rifleman", md.Position)
	require.Equal(t, "open", md.Status)

	// a second run finds nothing and touches the network zero times
	res, err = h.driver(Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, res.NewJobsFound)
	require.EqualValues(t, 2, h.requests.Load())

	// both runs recorded an event
	events, err := h.stats.Tail(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, 2, events[0].DownloadSuccessful)
	require.Equal(t, 0, events[1].NewJobsFound)
}

func TestRunCountsFailures(t *testing.T) {
	h, cleanup := newHarness(t, "ingest.RunCountsFailures")
	defer cleanup()
	h.writeSnapshot(t, "data/2025/12/10/output_120000.json", "100001", "100404")

	res, err := h.driver(Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Successful)
	require.Equal(t, 1, res.Failed)
	require.True(t, h.store.Exists(100001))
	require.False(t, h.store.Exists(100404))
}

func TestRunCapsBatch(t *testing.T) {
	h, cleanup := newHarness(t, "ingest.RunCapsBatch")
	defer cleanup()
	h.writeSnapshot(t, "data/2025/12/10/output_120000.json", "100001", "100002", "100003")

	res, err := h.driver(Options{MaxPerRun: 2}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, res.NewJobsFound)
	require.Equal(t, 2, res.Attempted)
	require.EqualValues(t, 2, h.requests.Load())
}

func TestDiscoverPrefersConsolidated(t *testing.T) {
	h, cleanup := newHarness(t, "ingest.DiscoverPrefersConsolidated")
	defer cleanup()
	h.writeSnapshot(t, "data/2025/12/10/output_120000.json", "100001", "100002")
	h.writeSnapshot(t, "data/consolidated_unique.json", "100001")

	d := h.driver(Options{})
	candidates, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, 100001, candidates[0].ID)
}

func TestDiscoverDeduplicatesAcrossSnapshots(t *testing.T) {
	h, cleanup := newHarness(t, "ingest.DiscoverDeduplicates")
	defer cleanup()
	h.writeSnapshot(t, "data/2025/12/09/output_120000.json", "100001", "100002")
	h.writeSnapshot(t, "data/2025/12/10/output_120000.json", "100001", "100003")

	candidates, err := h.driver(Options{}).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 3)
}

func TestDiscoverSkipsCached(t *testing.T) {
	h, cleanup := newHarness(t, "ingest.DiscoverSkipsCached")
	defer cleanup()
	h.writeSnapshot(t, "data/2025/12/10/output_120000.json", "100001", "100002")
	require.NoError(t, h.store.Put(100001, []byte(jobPage)))

	candidates, err := h.driver(Options{}).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, 100002, candidates[0].ID)

	// force re-checks everything
	candidates, err = h.driver(Options{Force: true}).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2)
}
