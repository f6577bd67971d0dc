// Package ingest drives the per-job download batch: discover ids the
// page store does not have yet, fetch them politely, store page +
// metadata, and always record a run statistics event.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"lobbytrack-backend/lib/pagestore"
	"lobbytrack-backend/lib/telemetry"
	"lobbytrack-backend/services/jobdetail"
	"lobbytrack-backend/services/runstats"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("lobbytrack.ingest")

type Options struct {
	DataDir string
	// fetch attempts per invocation, the backpressure mechanism.
	// remainder is picked up by the next scheduled run.
	MaxPerRun int
	Timeout   time.Duration
	UserAgent string
	// sustained fetch rate against the source site
	PerSecond float64
	// re-fetch pages the cache already has
	Force bool
}

func (o *Options) applyDefaults() {
	if o.MaxPerRun == 0 {
		o.MaxPerRun = 100
	}
	if o.Timeout == 0 {
		o.Timeout = 5 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	}
	if o.PerSecond == 0 {
		o.PerSecond = 2
	}
}

type Driver struct {
	opts    Options
	store   pagestore.Filesystem
	http    *resty.Client
	limiter *rate.Limiter
	stats   runstats.Log
}

func NewDriver(opts Options, store pagestore.Filesystem, stats runstats.Log) *Driver {
	opts.applyDefaults()

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("user-agent", opts.UserAgent)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	telemetry.InstrumentResty(client, "lobbytrack.ingest.http")

	return &Driver{
		opts:    opts,
		store:   store,
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(opts.PerSecond), 1),
		stats:   stats,
	}
}

type RunResult struct {
	NewJobsFound      int
	Attempted         int
	Successful        int
	Failed            int
	MetadataGenerated int
	MetadataSkipped   int
	MetadataFailed    int
}

// Run executes one complete batch. per-item fetch errors are counted
// and never abort the batch; the metadata pass and the stats event
// happen regardless of how the downloads went.
func (d *Driver) Run(ctx context.Context) (RunResult, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	var res RunResult

	candidates, err := d.Discover(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "discovery failed")
		// still emit the zero-work event before bailing
		d.appendStats(ctx, res)
		return res, err
	}
	res.NewJobsFound = len(candidates)

	if len(candidates) == 0 {
		slog.InfoContext(ctx, "no new jobs to download")
	} else {
		batch := candidates
		if len(batch) > d.opts.MaxPerRun {
			slog.InfoContext(ctx, "limiting batch",
				"max", d.opts.MaxPerRun, "found", len(candidates))
			batch = batch[:d.opts.MaxPerRun]
		}
		res.Attempted = len(batch)

		for i, c := range batch {
			slog.InfoContext(ctx, "downloading job",
				"n", i+1, "of", len(batch), "post_id", c.ID, "position", c.Post.Position)
			if err := d.fetchOne(ctx, c); err != nil {
				slog.WarnContext(ctx, "download failed", "post_id", c.ID, "err", err)
				res.Failed++
				continue
			}
			res.Successful++
		}
	}

	// best-effort regeneration over all known pages keeps metadata
	// eventually consistent after partial failures in earlier runs
	res.MetadataGenerated, res.MetadataSkipped, res.MetadataFailed =
		jobdetail.GenerateAll(ctx, d.store, false)

	d.appendStats(ctx, res)

	span.SetAttributes(
		attribute.Int("found", res.NewJobsFound),
		attribute.Int("successful", res.Successful),
		attribute.Int("failed", res.Failed),
	)
	return res, nil
}

func (d *Driver) fetchOne(ctx context.Context, c Candidate) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	res, err := d.http.R().SetContext(ctx).Get(c.Post.URL)
	if err != nil {
		return err
	}
	if res.IsError() {
		return &httpStatusError{status: res.Status()}
	}

	if err := d.store.Put(c.ID, res.Body()); err != nil {
		return err
	}

	md, err := jobdetail.Generate(d.store, c.ID, jobdetail.Hints{
		URL:      c.Post.URL,
		Position: c.Post.Position,
		UnitName: c.Post.UnitName,
	})
	if err != nil {
		return err
	}
	return jobdetail.Write(d.store, md)
}

type httpStatusError struct {
	status string
}

func (e *httpStatusError) Error() string {
	return "unexpected status " + e.status
}

func (d *Driver) appendStats(ctx context.Context, res RunResult) {
	err := d.stats.Append(ctx, runstats.Event{
		NewJobsFound:       res.NewJobsFound,
		JobsDownloaded:     res.Successful,
		DownloadSuccessful: res.Successful,
		DownloadFailed:     res.Failed,
		MetadataGenerated:  res.MetadataGenerated,
		MetadataSkipped:    res.MetadataSkipped,
		MetadataFailed:     res.MetadataFailed,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to write run stats", "err", err)
	}
}
