// Package runstats is the append-only log of pipeline run outcomes.
// one JSON object per line, never rewritten; reporting tools consume a
// suffix or a date range.
package runstats

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lobbytrack.runstats")

type Event struct {
	Timestamp          string `json:"timestamp"`
	NewJobsFound       int    `json:"new_jobs_found"`
	JobsDownloaded     int    `json:"jobs_downloaded"`
	DownloadSuccessful int    `json:"download_successful"`
	DownloadFailed     int    `json:"download_failed"`
	MetadataGenerated  int    `json:"metadata_generated"`
	MetadataSkipped    int    `json:"metadata_skipped"`
	MetadataFailed     int    `json:"metadata_failed"`
	// set by the parse stage instead of the download counters
	ParsedJobs int `json:"parsed_jobs,omitempty"`
}

func (e Event) Time() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type Log struct {
	path string
}

// NewLog points at the stats file, e.g. logs/cron_stats.jsonl. the
// file and its parents are created on first append.
func NewLog(path string) Log {
	return Log{path: path}
}

func (l Log) Path() string {
	return l.path
}

// Append writes one download event as a single JSON line. prior lines
// are never touched.
func (l Log) Append(ctx context.Context, event Event) error {
	_, span := tracer.Start(ctx, "Append")
	defer span.End()

	if event.Timestamp == "" {
		event.Timestamp = time.Now().Format(time.RFC3339)
	}
	return l.appendLine(span, event)
}

// parse events carry only the parsed count. consumers tell the two
// event kinds apart by key presence, so the download counters must not
// appear here even as zeros.
type parseEvent struct {
	Timestamp  string `json:"timestamp"`
	ParsedJobs int    `json:"parsed_jobs"`
}

// AppendParse records the outcome of one parse stage run.
func (l Log) AppendParse(ctx context.Context, parsedJobs int) error {
	_, span := tracer.Start(ctx, "AppendParse")
	defer span.End()

	return l.appendLine(span, parseEvent{
		Timestamp:  time.Now().Format(time.RFC3339),
		ParsedJobs: parsedJobs,
	})
}

func (l Log) appendLine(span trace.Span, v any) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		span.RecordError(err)
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer f.Close()

	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

// readAll parses the log line by line. malformed lines are skipped
// with a warning, a partially written tail must not poison the whole
// history.
func (l Log) readAll() ([]Event, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			slog.Warn("skipping malformed stats line", "file", l.path, "line", lineno, "err", err)
			continue
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}

// Tail returns the last n events, oldest first.
func (l Log) Tail(n int) ([]Event, error) {
	events, err := l.readAll()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

// Between returns events whose timestamp falls in [from, to). zero
// bounds are open.
func (l Log) Between(from, to time.Time) ([]Event, error) {
	events, err := l.readAll()
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, e := range events {
		t, ok := e.Time()
		if !ok {
			continue
		}
		if !from.IsZero() && t.Before(from) {
			continue
		}
		if !to.IsZero() && !t.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
