package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ceilometer-etl/internal/sample"
)

var t0 = time.Date(2013, 7, 1, 0, 0, 12, 0, time.UTC)

func writeSample(t *testing.T, name string, msgs []sample.Message) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, sample.DAT(msgs...), 0o600))
	return path
}

func TestRunPasses(t *testing.T) {
	path := writeSample(t, "A1307010.DAT", sample.Series(sample.CL, t0, 30*time.Second, 4, sample.StampDateTime))

	var out bytes.Buffer
	code := run(context.Background(), []string{path}, &out)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "Files: 1, records: 4, dropped: 0")
	assert.Contains(t, out.String(), "All validations passed.")
}

func TestRunReportsChecksumFailures(t *testing.T) {
	msgs := sample.Series(sample.CT, t0, 15*time.Second, 3, sample.StampEpoch)
	msgs[2].BadChecksum = true
	path := writeSample(t, "B1307010.DAT", msgs)

	var out bytes.Buffer
	code := run(context.Background(), []string{path}, &out)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "--- Phase 2: Checksums ---")
	assert.Contains(t, out.String(), "B1307010.DAT line")
	assert.Contains(t, out.String(), "dropped: 1")
}

func TestRunReportsUnreadableFile(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.DAT")}, &out)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "--- Phase 1: Decoding ---")
}

func TestValidateRecordsTimeOrder(t *testing.T) {
	msgs := []sample.Message{sample.CL(t0.Add(time.Minute), 0), sample.CL(t0, 1)}
	path := writeSample(t, "A1307010.DAT", msgs)

	var out bytes.Buffer
	code := run(context.Background(), []string{path}, &out)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "precedes previous record")
}
