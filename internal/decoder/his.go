package decoder

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/ceilometer-etl/internal/domain"
)

// History file columns, matched case-insensitively.
const (
	colCreateDate = "CREATEDATE"
	colUnixTime   = "UNIXTIME"
	colCeilometer = "CEILOMETER"
	colPeriod     = "PERIOD"
	colProfile    = "BS_PROFILE"
)

// isHISBanner reports whether a line precedes the column header.
func isHISBanner(text string) bool {
	return text == "" ||
		strings.HasPrefix(text, "-") ||
		strings.HasPrefix(text, "=") ||
		strings.HasPrefix(text, "#") ||
		!strings.Contains(text, ",")
}

// DecodeHIS decodes a history file: banner lines, a comma-separated column
// header, then one record per row. History records carry the CL dialect.
func (d *Decoder) DecodeHIS(ctx context.Context, name string, data []byte) (Result, error) {
	res := Result{Source: name, Format: FormatHIS}
	var columns map[string]int
	number := 0
	for raw := range bytes.Lines(data) {
		number++
		if number%cancelCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		text := strings.TrimRight(string(raw), " \t\r\n")
		if columns == nil {
			if isHISBanner(text) {
				continue
			}
			cols, err := hisColumns(text)
			if err != nil {
				return Result{}, fmt.Errorf("%s: line %d: %w", name, number, err)
			}
			columns = cols
			if _, ok := columns[colProfile]; !ok {
				return Result{}, fmt.Errorf("%s: line %d: %w: header has no %s column", name, number, ErrGrammar, colProfile)
			}
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		r, err := d.hisRecord(columns, text)
		if err != nil {
			d.addIssue(&res, Issue{Line: number, Stage: StageProfile, Err: err, Dropped: true})
			continue
		}
		if err := d.finalize(&res, r, number); err != nil {
			return Result{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}

func hisColumns(header string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, name := range strings.Split(header, ",") {
		name = strings.ToUpper(strings.TrimSpace(name))
		if _, dup := cols[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q in header", ErrGrammar, name)
		}
		cols[name] = i
	}
	return cols, nil
}

func (d *Decoder) hisRecord(columns map[string]int, text string) (domain.Record, error) {
	cells := strings.Split(text, ",")
	if len(cells) != len(columns) {
		return domain.Record{}, fmt.Errorf("%w: %d columns, header has %d", ErrGrammar, len(cells), len(columns))
	}
	cell := func(col string) (string, bool) {
		i, ok := columns[col]
		if !ok {
			return "", false
		}
		return strings.TrimSpace(cells[i]), true
	}

	r := domain.Record{Dialect: domain.DialectCL}
	if s, ok := cell(colCreateDate); ok && s != "" {
		t, err := d.grammar.Timestamps.Resolve(s, time.Time{})
		if err != nil {
			return r, fmt.Errorf("%s: %w", colCreateDate, err)
		}
		r.SetTime(t)
	} else if s, ok := cell(colUnixTime); ok && s != "" {
		t, err := domain.ParseEpoch(s)
		if err != nil {
			return r, fmt.Errorf("%s: %w", colUnixTime, err)
		}
		r.SetTime(t)
	}
	if s, ok := cell(colCeilometer); ok {
		r.Device = domain.Value(s)
	}
	if s, ok := cell(colPeriod); ok {
		p, err := domain.ParseInt(s)
		if err != nil {
			return r, fmt.Errorf("%s: %w", colPeriod, err)
		}
		r.Period = p
	}
	profile, _ := cell(colProfile)
	samples, err := domain.ParseHexArray(profile, domain.DialectCL.Spec().SampleDigits)
	if err != nil {
		return r, fmt.Errorf("%s: %w", colProfile, err)
	}
	r.Raw.Backscatter = samples
	return r, nil
}
