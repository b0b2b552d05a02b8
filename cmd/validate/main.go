// Command validate performs integrity checks over ceilometer files: it
// decodes each file with checksum verification and reports checksum
// failures, dropped records, time ordering and schema consistency.
//
// Usage:
//
//	go run ./cmd/validate -dir data/in
//	go run ./cmd/validate A1307010.DAT A1307020.DAT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/couchcryptid/ceilometer-etl/internal/adapter/file"
	"github.com/couchcryptid/ceilometer-etl/internal/decoder"
	"github.com/couchcryptid/ceilometer-etl/internal/domain"
	"github.com/couchcryptid/ceilometer-etl/internal/schema"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// decoded is one file's decode outcome.
type decoded struct {
	name string
	res  decoder.Result
	err  error
}

func main() {
	dir := flag.String("dir", "", "directory of DAT/HIS files to validate")
	flag.Parse()

	paths := flag.Args()
	if *dir != "" {
		listed, err := file.NewSource(*dir, false).List(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(context.Background(), paths, os.Stdout))
}

func run(ctx context.Context, paths []string, out io.Writer) int {
	catalogue, err := schema.NewCatalogue()
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dec := decoder.New(decoder.NewGrammar(), decoder.Options{Check: true}, logger)

	fmt.Fprintln(out, "=== Ceilometer Data Integrity Validation ===")
	fmt.Fprintln(out)

	files := make([]decoded, 0, len(paths))
	for _, path := range paths {
		res, err := dec.DecodeFile(ctx, path)
		files = append(files, decoded{name: filepath.Base(path), res: res, err: err})
	}

	phases := []*phase{
		validateDecoding(files),
		validateChecksums(files),
		validateRecords(files),
		validateSchema(files, catalogue),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	records, dropped := 0, 0
	for _, f := range files {
		records += len(f.res.Records)
		dropped += f.res.Dropped()
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Files: %d, records: %d, dropped: %d\n", len(files), records, dropped)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phase 1: Decoding ──
// Every file decodes without a file-fatal error and yields records.

func validateDecoding(files []decoded) *phase {
	p := &phase{name: "Phase 1: Decoding"}
	for _, f := range files {
		switch {
		case f.err != nil:
			p.errorf("%s: %v", f.name, f.err)
		case len(f.res.Records) == 0:
			p.errorf("%s: %v", f.name, decoder.ErrNoRecords)
		}
	}
	return p
}

// ── Phase 2: Checksums ──
// No record was dropped for a checksum mismatch.

func validateChecksums(files []decoded) *phase {
	p := &phase{name: "Phase 2: Checksums"}
	for _, f := range files {
		for _, issue := range f.res.Issues {
			if errors.Is(issue.Err, domain.ErrChecksum) {
				p.errorf("%s line %d: %v", f.name, issue.Line, issue.Err)
			}
		}
	}
	return p
}

// ── Phase 3: Records ──
// Records carry a time, times never go backwards, and the profile length
// is stable within a file.

func validateRecords(files []decoded) *phase {
	p := &phase{name: "Phase 3: Records (time, profile)"}
	for _, f := range files {
		var prev float64
		var levels []int
		for i, r := range f.res.Records {
			secs, ok := r.Time.Get()
			if !ok {
				p.errorf("%s record %d: no time", f.name, i)
				continue
			}
			if i > 0 && secs < prev {
				p.errorf("%s record %d: time %s precedes previous record", f.name, i, r.TimeUTC.Or("?"))
			}
			prev = secs
			if n := len(r.Backscatter); n > 0 && !slices.Contains(levels, n) {
				levels = append(levels, n)
			}
		}
		if len(levels) > 1 {
			p.errorf("%s: profile lengths vary: %v", f.name, levels)
		}
	}
	return p
}

// ── Phase 4: Schema ──
// Every derived variable yields one value per dimension element for every
// record.

func validateSchema(files []decoded, catalogue *schema.Catalogue) *phase {
	p := &phase{name: "Phase 4: Schema alignment"}
	for _, f := range files {
		if len(f.res.Records) == 0 {
			continue
		}
		sch := catalogue.Derive(f.res.Records)
		if !sch.Has("time") {
			p.errorf("%s: schema lacks time", f.name)
		}
		for _, v := range sch.Variables {
			cols := len(sch.Columns(v))
			for i, r := range f.res.Records {
				if got := len(sch.Values(v, r)); got != cols {
					p.errorf("%s record %d: %s has %d values, want %d", f.name, i, v.Name, got, cols)
				}
			}
		}
	}
	return p
}
