package runstats

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestAppendAndTail(t *testing.T) {
	log := NewLog(filepath.Join(t.TempDir(), "logs", "cron_stats.jsonl"))

	first := Event{
		Timestamp:          "2025-12-09T06:00:00Z",
		NewJobsFound:       12,
		JobsDownloaded:     12,
		DownloadSuccessful: 11,
		DownloadFailed:     1,
		MetadataGenerated:  11,
		MetadataSkipped:    340,
	}
	require.NoError(t, log.Append(context.Background(), first))
	require.NoError(t, log.Append(context.Background(), Event{
		Timestamp: "2025-12-10T06:00:00Z",
	}))

	// two lines on disk, prior line untouched
	body, err := os.ReadFile(log.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	require.Len(t, lines, 2)

	events, err := log.Tail(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	if diff := cmp.Diff(first, events[0]); diff != "" {
		t.Fatalf("event did not round-trip (-want +got):\n%s", diff)
	}

	events, err = log.Tail(1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "2025-12-10T06:00:00Z", events[0].Timestamp)
}

func TestAppendParseShape(t *testing.T) {
	log := NewLog(filepath.Join(t.TempDir(), "cron_stats.jsonl"))
	require.NoError(t, log.AppendParse(context.Background(), 345))
	require.NoError(t, log.Append(context.Background(), Event{DownloadSuccessful: 2}))

	body, err := os.ReadFile(log.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	require.Len(t, lines, 2)

	// a parse line carries only the timestamp and the parsed count
	var parseLine map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &parseLine))
	require.Len(t, parseLine, 2)
	require.Contains(t, parseLine, "timestamp")
	require.EqualValues(t, 345, parseLine["parsed_jobs"])

	// a download line carries the counters but no parsed count
	var downloadLine map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &downloadLine))
	require.Contains(t, downloadLine, "download_successful")
	require.NotContains(t, downloadLine, "parsed_jobs")

	// both kinds read back as events
	events, err := log.Tail(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, 345, events[0].ParsedJobs)
	require.Equal(t, 2, events[1].DownloadSuccessful)
}

func TestAppendFillsTimestamp(t *testing.T) {
	log := NewLog(filepath.Join(t.TempDir(), "cron_stats.jsonl"))
	require.NoError(t, log.Append(context.Background(), Event{NewJobsFound: 1}))

	events, err := log.Tail(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	_, ok := events[0].Time()
	require.True(t, ok)
}

func TestReadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cron_stats.jsonl")
	contents := `{"timestamp":"2025-12-09T06:00:00Z","new_jobs_found":3}
this line was cut off mid-wri
{"timestamp":"2025-12-10T06:00:00Z","new_jobs_found":5}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	events, err := NewLog(path).Tail(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, 3, events[0].NewJobsFound)
	require.Equal(t, 5, events[1].NewJobsFound)
}

func TestBetween(t *testing.T) {
	log := NewLog(filepath.Join(t.TempDir(), "cron_stats.jsonl"))
	for _, ts := range []string{
		"2025-12-08T06:00:00Z",
		"2025-12-09T06:00:00Z",
		"2025-12-10T06:00:00Z",
	} {
		require.NoError(t, log.Append(context.Background(), Event{Timestamp: ts}))
	}

	from := time.Date(2025, 12, 9, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC)

	events, err := log.Between(from, to)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "2025-12-09T06:00:00Z", events[0].Timestamp)

	// open upper bound
	events, err = log.Between(from, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestMissingLogIsEmpty(t *testing.T) {
	log := NewLog(filepath.Join(t.TempDir(), "nope.jsonl"))
	events, err := log.Tail(10)
	require.NoError(t, err)
	require.Empty(t, events)
}
