// Command cl2csv converts ceilometer DAT and HIS files to CSV tables with a
// YAML schema side-car.
//
// Usage:
//
//	cl2csv [-c] [-q] [--debug] [-i initial-time] [-s interval] input output
//
// When input is a directory every DAT/HIS file in it is converted into the
// output directory.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/ceilometer-etl/internal/adapter/csvsink"
	"github.com/couchcryptid/ceilometer-etl/internal/adapter/file"
	"github.com/couchcryptid/ceilometer-etl/internal/decoder"
	"github.com/couchcryptid/ceilometer-etl/internal/domain"
	"github.com/couchcryptid/ceilometer-etl/internal/observability"
	"github.com/couchcryptid/ceilometer-etl/internal/pipeline"
	"github.com/couchcryptid/ceilometer-etl/internal/schema"
)

type options struct {
	check       bool
	quiet       bool
	debug       bool
	initialTime string
	interval    time.Duration
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "cl2csv [flags] input output",
		Short: "Convert Vaisala CL31, CL51 and CT25K files to CSV",
		Long: "cl2csv decodes ceilometer DAT and HIS files into CSV tables with a YAML schema side-car.\n" +
			"When input is a directory, every .dat and .his file in it is converted into the output directory.",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0], args[1], stdout, stderr)
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&opts.check, "check", "c", false, "enable checksum verification")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "run quietly (suppress progress output)")
	f.BoolVar(&opts.debug, "debug", false, "print debugging information")
	f.StringVarP(&opts.initialTime, "initial-time", "i", "", "time of the first record in files without timestamps (UTC)")
	f.DurationVarP(&opts.interval, "sampling-interval", "s", 0, "interval between records in files without timestamps")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "cl2csv:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, input, output string, stdout, stderr io.Writer) error {
	level := "warn"
	if opts.debug {
		level = "debug"
	}
	logger, _ := observability.NewLogger(observability.LogOptions{Level: level, Format: "text", Output: stderr})

	decOpts := decoder.Options{Check: opts.check, SamplingInterval: opts.interval}
	if opts.initialTime != "" {
		t, err := domain.ParseTimeArg(opts.initialTime)
		if err != nil {
			logger.Warn("ignoring initial time", "error", err)
		} else {
			decOpts.InitialTime = t
		}
	}
	dec := decoder.New(decoder.NewGrammar(), decOpts, logger)

	catalogue, err := schema.NewCatalogue()
	if err != nil {
		return err
	}

	info, err := os.Stat(input)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return convertDir(ctx, dec, catalogue, input, output, opts.quiet, stdout, logger)
	}
	return convertFile(ctx, dec, catalogue, input, output, logger)
}

func convertFile(ctx context.Context, dec *decoder.Decoder, catalogue *schema.Catalogue, input, output string, logger *slog.Logger) error {
	res, err := dec.DecodeFile(ctx, input)
	if err != nil {
		return err
	}
	if len(res.Records) == 0 {
		logger.Warn("no records decoded, no output written", "file", filepath.Base(input))
		return nil
	}
	return csvsink.NewSink(filepath.Dir(output), catalogue, logger).WriteFile(ctx, output, res)
}

func convertDir(ctx context.Context, dec *decoder.Decoder, catalogue *schema.Catalogue, input, output string, quiet bool, stdout io.Writer, logger *slog.Logger) error {
	var d pipeline.Decoder = dec
	if !quiet {
		d = progressDecoder{Decoder: dec, out: stdout}
	}
	sink := csvsink.NewSink(output, catalogue, logger)
	p := pipeline.New(file.NewSource(input, false), d, []pipeline.Loader{sink}, logger,
		observability.NewMetricsWith(prometheus.NewRegistry()), pipeline.Options{Workers: 1})

	pass, err := p.RunOnce(ctx)
	if err != nil {
		return err
	}
	if pass.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", pass.Failed, pass.Files)
	}
	return nil
}

// progressDecoder prints each input path before decoding it.
type progressDecoder struct {
	pipeline.Decoder
	out io.Writer
}

func (p progressDecoder) DecodeFile(ctx context.Context, path string) (decoder.Result, error) {
	fmt.Fprintln(p.out, path)
	return p.Decoder.DecodeFile(ctx, path)
}
