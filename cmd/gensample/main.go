// Command gensample writes synthetic ceilometer files for demos and manual
// testing of the decoder.
//
// Usage:
//
//	go run ./cmd/gensample \
//	  -out data/in \
//	  -dialect CL -n 120 -interval 30s \
//	  -start 2013-07-01T00:00:00 -stamp datetime
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/ceilometer-etl/internal/domain"
	"github.com/couchcryptid/ceilometer-etl/internal/sample"
)

var stamps = map[string]sample.Stamp{
	"datetime": sample.StampDateTime,
	"epoch":    sample.StampEpoch,
	"time":     sample.StampTimeOnly,
	"trailing": sample.StampTrailing,
	"none":     sample.StampNone,
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/in", "output directory")
	dialect := flag.String("dialect", "CL", "message dialect: CL or CT")
	n := flag.Int("n", 120, "number of messages")
	interval := flag.Duration("interval", 30*time.Second, "time between messages")
	startArg := flag.String("start", "2013-07-01T00:00:00", "time of the first message (UTC)")
	stampArg := flag.String("stamp", "datetime", "timestamp form: datetime, epoch, time, trailing or none")
	his := flag.Bool("his", false, "also write a history file with the same profiles")
	corrupt := flag.Int("corrupt", 0, "write a bad checksum on every k-th message (0 disables)")
	flag.Parse()

	start, err := domain.ParseTimeArg(*startArg)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	stamp, ok := stamps[*stampArg]
	if !ok {
		return fmt.Errorf("invalid -stamp %q", *stampArg)
	}
	var newMsg func(time.Time, int) sample.Message
	switch domain.Dialect(strings.ToUpper(*dialect)) {
	case domain.DialectCL:
		newMsg = sample.CL
	case domain.DialectCT:
		newMsg = sample.CT
	default:
		return fmt.Errorf("invalid -dialect %q", *dialect)
	}

	msgs := sample.Series(newMsg, start, *interval, *n, stamp)
	if *corrupt > 0 {
		for i := *corrupt - 1; i < len(msgs); i += *corrupt {
			msgs[i].BadChecksum = true
		}
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	// Loggers name files AYYMMDDH; the decoder reads the date from it.
	base := fmt.Sprintf("A%s0", start.Format("060102"))
	datPath := filepath.Join(*out, base+".DAT")
	if err := os.WriteFile(datPath, sample.DAT(msgs...), 0o644); err != nil { //nolint:gosec // sample data
		return err
	}
	log.Printf("%s: %d %s messages", datPath, len(msgs), strings.ToUpper(*dialect))

	if !*his {
		return nil
	}
	rows := make([]sample.HISRow, len(msgs))
	for i, m := range msgs {
		rows[i] = sample.HISRow{
			Time:    m.Time,
			Device:  "CL51",
			Period:  int(interval.Seconds()),
			Profile: m.Profile,
		}
	}
	hisPath := filepath.Join(*out, base+".his")
	if err := os.WriteFile(hisPath, sample.HIS(rows...), 0o644); err != nil { //nolint:gosec // sample data
		return err
	}
	log.Printf("%s: %d rows", hisPath, len(rows))
	return nil
}
