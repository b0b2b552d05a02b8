package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/ceilometer-etl/internal/decoder"
	"github.com/couchcryptid/ceilometer-etl/internal/observability"
)

// Source lists the input files of one pass.
type Source interface {
	List(ctx context.Context) ([]string, error)
}

// Decoder turns one input file into records.
type Decoder interface {
	DecodeFile(ctx context.Context, path string) (decoder.Result, error)
}

// Loader writes the records of one decoded file to a destination.
type Loader interface {
	Load(ctx context.Context, res decoder.Result) error
}

// forgetter is implemented by sources that remember listed files. A file
// whose load failed is forgotten so the next pass retries it.
type forgetter interface {
	Forget(path string)
}

// Stats are the running totals since the pipeline started.
type Stats struct {
	Passes   int       `json:"passes"`
	Files    int       `json:"files"`
	Loaded   int       `json:"loaded"`
	Empty    int       `json:"empty"`
	Failed   int       `json:"failed"`
	Records  int       `json:"records"`
	Dropped  int       `json:"dropped"`
	LastPass time.Time `json:"last_pass,omitzero"`
}

// Options tunes the batch loop.
type Options struct {
	// Workers bounds the files processed concurrently. Values below 1 mean 1.
	Workers int
	// PollInterval is the pause between passes. Zero runs a single pass.
	PollInterval time.Duration
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Pipeline drives files from a source through the decoder to every loader.
type Pipeline struct {
	source  Source
	decoder Decoder
	loaders []Loader
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	workers int
	poll    time.Duration
	ready   atomic.Bool

	mu    sync.Mutex
	stats Stats
}

// New creates a Pipeline with the given stages and observability.
func New(src Source, dec Decoder, loaders []Loader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		source:  src,
		decoder: dec,
		loaders: loaders,
		logger:  logger,
		metrics: metrics,
		clock:   opts.Clock,
		workers: max(opts.Workers, 1),
		poll:    opts.PollInterval,
	}
}

// CheckReadiness returns nil once the first pass has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a pass yet")
	}
	return nil
}

// Stats returns a snapshot of the running totals.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run executes passes until the context is cancelled, or once when no poll
// interval is set.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "workers", p.workers, "poll_interval", p.poll)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for {
		if _, err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			if p.poll <= 0 {
				return err
			}
			p.logger.Error("pass failed", "error", err)
		}
		if p.poll <= 0 {
			return nil
		}
		if !p.sleepWithContext(ctx, p.poll) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunOnce processes every file the source lists and returns the totals of
// this pass. Per-file failures are logged and counted, not returned.
func (p *Pipeline) RunOnce(ctx context.Context) (Stats, error) {
	paths, err := p.source.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	var (
		pass Stats
		mu   sync.Mutex
		g    errgroup.Group
	)
	g.SetLimit(p.workers)
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fs := p.processFile(ctx, path)
			mu.Lock()
			pass.add(fs)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return pass, err
	}

	pass.Passes = 1
	pass.LastPass = p.clock.Now()
	p.mu.Lock()
	p.stats.add(pass)
	p.stats.LastPass = pass.LastPass
	p.mu.Unlock()
	p.ready.Store(true)

	p.logger.Info("pass complete",
		"files", pass.Files,
		"failed", pass.Failed,
		"records", pass.Records,
		"dropped", pass.Dropped,
	)
	return pass, nil
}

func (s *Stats) add(o Stats) {
	s.Passes += o.Passes
	s.Files += o.Files
	s.Loaded += o.Loaded
	s.Empty += o.Empty
	s.Failed += o.Failed
	s.Records += o.Records
	s.Dropped += o.Dropped
}

// processFile decodes one file and hands the result to every loader.
func (p *Pipeline) processFile(ctx context.Context, path string) Stats {
	start := p.clock.Now()
	fs := Stats{Files: 1}
	name := filepath.Base(path)

	res, err := p.decoder.DecodeFile(ctx, path)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("decode failed", "file", name, "error", err)
		}
		fs.Failed = 1
		p.metrics.FilesProcessed.WithLabelValues(observability.OutcomeFailed).Inc()
		return fs
	}

	for _, r := range res.Records {
		p.metrics.RecordsDecoded.WithLabelValues(string(r.Dialect)).Inc()
	}
	for _, issue := range res.Issues {
		if issue.Dropped {
			p.metrics.RecordsDropped.WithLabelValues(issue.Reason()).Inc()
		}
	}
	fs.Records = len(res.Records)
	fs.Dropped = res.Dropped()

	if len(res.Records) == 0 {
		p.logger.Warn("no records decoded", "file", name, "issues", len(res.Issues))
		fs.Empty = 1
		p.metrics.FilesProcessed.WithLabelValues(observability.OutcomeEmpty).Inc()
		return fs
	}

	for _, l := range p.loaders {
		if err := l.Load(ctx, res); err != nil {
			p.logger.Error("load failed", "file", name, "error", err)
			if f, ok := p.source.(forgetter); ok && ctx.Err() == nil {
				f.Forget(path)
			}
			fs.Failed = 1
			p.metrics.FilesProcessed.WithLabelValues(observability.OutcomeFailed).Inc()
			return fs
		}
	}

	fs.Loaded = 1
	p.metrics.FilesProcessed.WithLabelValues(observability.OutcomeLoaded).Inc()
	p.metrics.RecordsLoaded.Add(float64(len(res.Records)))
	p.metrics.FileDecodeDuration.Observe(p.clock.Since(start).Seconds())
	p.logger.Info("file processed",
		"file", name,
		"format", res.Format,
		"records", len(res.Records),
		"dropped", fs.Dropped,
	)
	return fs
}

func (p *Pipeline) sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
