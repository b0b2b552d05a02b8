// Package csvsink writes decoded records as a flat CSV table with a YAML
// side-car describing dimensions, variable attributes and provenance.
package csvsink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/ceilometer-etl/internal/decoder"
	"github.com/couchcryptid/ceilometer-etl/internal/schema"
)

// Sink writes one CSV file per decoded input file.
// It implements pipeline.Loader.
type Sink struct {
	dir       string
	catalogue *schema.Catalogue
	logger    *slog.Logger
}

// NewSink creates a Sink writing into dir, which must exist.
func NewSink(dir string, catalogue *schema.Catalogue, logger *slog.Logger) *Sink {
	return &Sink{dir: dir, catalogue: catalogue, logger: logger}
}

// OutputPath maps an input file to its CSV path in dir.
func OutputPath(dir, source string) string {
	base := filepath.Base(source)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+".csv")
}

// SidecarPath is the schema document written next to a CSV file.
func SidecarPath(csvPath string) string {
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".yaml"
}

// Load writes res into the sink directory.
func (s *Sink) Load(ctx context.Context, res decoder.Result) error {
	return s.WriteFile(ctx, OutputPath(s.dir, res.Source), res)
}

// WriteFile writes res to path and its side-car. A result without records
// produces no files.
func (s *Sink) WriteFile(ctx context.Context, path string, res decoder.Result) error {
	if len(res.Records) == 0 {
		return decoder.ErrNoRecords
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}

	sch := s.catalogue.Derive(res.Records)
	if err := writeTable(ctx, path, sch, res); err != nil {
		return err
	}
	doc := sch.Document(schema.Attributes(filepath.Base(res.Source), res.Dialect))
	if err := writeSidecar(SidecarPath(path), doc); err != nil {
		return err
	}
	s.logger.Debug("csv written", "path", path, "records", len(res.Records), "variables", len(sch.Variables))
	return nil
}

func writeTable(ctx context.Context, path string, sch schema.Schema, res decoder.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close csv: %w", cerr)
		}
		if err != nil {
			os.Remove(path) //nolint:errcheck // best-effort cleanup of partial output
		}
	}()

	w := csv.NewWriter(f)
	var header []string
	for _, v := range sch.Variables {
		header = append(header, sch.Columns(v)...)
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, 0, len(header))
	for _, r := range res.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		row = row[:0]
		for _, v := range sch.Variables {
			for _, x := range sch.Values(v, r) {
				row = append(row, schema.Format(v, x))
			}
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeSidecar(path string, doc schema.Document) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create schema side-car: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode schema side-car: %w", err)
	}
	return enc.Close()
}
