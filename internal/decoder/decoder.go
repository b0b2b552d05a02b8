package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/ceilometer-etl/internal/domain"
)

var (
	// ErrDialectMismatch is fatal for a file: its records must share one dialect.
	ErrDialectMismatch = errors.New("dialect changed within file")
	// ErrNoRecords reports a file that decoded to nothing.
	ErrNoRecords = errors.New("no valid records")
	// ErrTruncated reports a record cut off by the end of input.
	ErrTruncated = errors.New("record truncated at end of input")
)

const (
	// cancelCheckLines is how often the scan loops poll the context.
	cancelCheckLines = 512
	// sniffLines bounds content-based format detection.
	sniffLines = 64
)

// Format is an input file format.
type Format string

const (
	FormatDAT Format = "dat"
	FormatHIS Format = "his"
)

// Options are the caller-supplied decoding parameters.
type Options struct {
	// Check enables checksum verification.
	Check bool
	// InitialTime is the time of the first record in a file without
	// timestamps.
	InitialTime time.Time
	// SamplingInterval is added to the previous record's time when a record
	// has no timestamp.
	SamplingInterval time.Duration
}

// Issue is a record-scoped problem. Dropped issues abandoned a record;
// the others are warnings on records that were kept.
type Issue struct {
	Line    int
	Stage   Stage
	Err     error
	Dropped bool
}

func (i Issue) Error() string {
	return fmt.Sprintf("line %d (%s): %v", i.Line, i.Stage, i.Err)
}

func (i Issue) Unwrap() error { return i.Err }

// Reason classifies the issue for metrics.
func (i Issue) Reason() string {
	switch {
	case errors.Is(i.Err, domain.ErrChecksum):
		return "checksum"
	case errors.Is(i.Err, ErrTruncated):
		return "truncated"
	case errors.Is(i.Err, domain.ErrNoDate), errors.Is(i.Err, domain.ErrNoTimestamp):
		return "timestamp"
	case errors.Is(i.Err, domain.ErrField):
		return "field"
	default:
		return "grammar"
	}
}

// Result is the outcome of decoding one file.
type Result struct {
	Source  string
	Format  Format
	Dialect domain.Dialect
	Records []domain.Record
	Issues  []Issue
}

// Dropped counts the abandoned records.
func (r Result) Dropped() int {
	n := 0
	for _, i := range r.Issues {
		if i.Dropped {
			n++
		}
	}
	return n
}

// Decoder turns ceilometer files into records. It holds no per-file state
// and may be shared between goroutines.
type Decoder struct {
	grammar *Grammar
	opts    Options
	logger  *slog.Logger
}

// New creates a Decoder.
func New(g *Grammar, opts Options, logger *slog.Logger) *Decoder {
	return &Decoder{grammar: g, opts: opts, logger: logger}
}

// DecodeFile reads path in full and decodes it.
func (d *Decoder) DecodeFile(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read input: %w", err)
	}
	return d.Decode(ctx, path, data)
}

// Decode detects the format of data and decodes it. name is used for
// format detection, the date of time-only timestamps and log context.
func (d *Decoder) Decode(ctx context.Context, name string, data []byte) (Result, error) {
	if DetectFormat(name, data) == FormatHIS {
		return d.DecodeHIS(ctx, name, data)
	}
	return d.DecodeDAT(ctx, name, data)
}

// DetectFormat picks the format from the file suffix, then from content:
// a comma-separated header naming a profile column marks a history file.
func DetectFormat(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".his":
		return FormatHIS
	case ".dat":
		return FormatDAT
	}
	scanned := 0
	for line := range bytes.Lines(data) {
		if scanned++; scanned > sniffLines {
			break
		}
		text := strings.TrimSpace(string(line))
		if isHISBanner(text) {
			continue
		}
		if strings.Contains(strings.ToUpper(text), "BS_PROFILE") {
			return FormatHIS
		}
		break
	}
	return FormatDAT
}

// DecodeDAT runs the message state machine over a DAT line protocol file.
// Only a dialect change or cancellation fails the whole file.
func (d *Decoder) DecodeDAT(ctx context.Context, name string, data []byte) (Result, error) {
	res := Result{Source: name, Format: FormatDAT}
	date, _ := domain.DateFromFileName(name)
	m := NewMachine(d.grammar, date, d.opts.Check)

	var (
		st      State
		last    int
		resync  bool
		skipped int
	)
	for line := range d.grammar.Lines(data) {
		last = line.Number
		if line.Number%cancelCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		// After a drop, the rest of the broken record is skipped quietly.
		if resync {
			if !m.StartsRecord(line) {
				skipped++
				continue
			}
			d.logger.Debug("resynchronized", "file", name, "line", line.Number, "skipped", skipped)
			resync, skipped = false, 0
		}
		for {
			stage := st.Stage
			var eff Effect
			st, eff = m.Step(st, line)
			if eff.Warning != nil {
				d.addIssue(&res, Issue{Line: line.Number, Stage: stage, Err: eff.Warning})
			}
			switch eff.Action {
			case ActionEmit, ActionEmitReplay:
				if err := d.finalize(&res, eff.Record, line.Number); err != nil {
					return Result{}, err
				}
			case ActionDrop:
				d.addIssue(&res, Issue{Line: line.Number, Stage: stage, Err: eff.Err, Dropped: true})
				resync = !eff.Replay
			}
			if eff.Action != ActionEmitReplay && !eff.Replay {
				break
			}
		}
	}

	switch {
	case m.Complete(st):
		if err := d.finalize(&res, st.Record, last); err != nil {
			return Result{}, err
		}
	case st.Stage != StageTimestamp:
		d.addIssue(&res, Issue{Line: last, Stage: st.Stage, Err: ErrTruncated, Dropped: true})
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// finalize verifies, completes and appends a record.
func (d *Decoder) finalize(res *Result, r domain.Record, line int) error {
	if d.opts.Check {
		if err := domain.VerifyChecksum(r); err != nil {
			d.addIssue(res, Issue{Line: line, Stage: StageChecksum, Err: err, Dropped: true})
			return nil
		}
	}
	r.Raw.Message = nil
	d.backfillTime(&r, len(res.Records), res.Records)
	r = domain.PostProcess(r)

	if res.Dialect == domain.DialectUnknown {
		res.Dialect = r.Dialect
	} else if r.Dialect != res.Dialect {
		return fmt.Errorf("%s: line %d: %w: %s after %s", res.Source, line, ErrDialectMismatch, r.Dialect, res.Dialect)
	}
	res.Records = append(res.Records, r)
	return nil
}

// backfillTime gives a record without a timestamp the previous record's
// time plus the sampling interval, or the initial time plus n intervals.
func (d *Decoder) backfillTime(r *domain.Record, n int, prev []domain.Record) {
	if _, ok := r.Timestamp(); ok {
		return
	}
	step := d.opts.SamplingInterval
	if n > 0 && step > 0 {
		if t, ok := prev[n-1].Timestamp(); ok {
			r.SetTime(t.Add(step))
			return
		}
	}
	if !d.opts.InitialTime.IsZero() {
		r.SetTime(d.opts.InitialTime.Add(time.Duration(n) * step))
	}
}

func (d *Decoder) addIssue(res *Result, issue Issue) {
	res.Issues = append(res.Issues, issue)
	msg := "record warning"
	if issue.Dropped {
		msg = "record dropped"
	}
	d.logger.Warn(msg,
		"file", res.Source,
		"line", issue.Line,
		"stage", issue.Stage.String(),
		"error", issue.Err,
	)
}
