package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ceilometer-etl/internal/config"
	"github.com/couchcryptid/ceilometer-etl/internal/decoder"
	"github.com/couchcryptid/ceilometer-etl/internal/domain"
	"github.com/couchcryptid/ceilometer-etl/internal/schema"
)

// batchSize bounds the messages passed to one WriteMessages call.
const batchSize = 100

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes one message per decoded record to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer    messageWriter
	catalogue *schema.Catalogue
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, catalogue *schema.Catalogue, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, catalogue: catalogue, logger: logger}
}

// Load serializes the records of res and publishes them in batches.
// Messages are keyed by source file so one file's records stay ordered
// within a partition.
func (w *Writer) Load(ctx context.Context, res decoder.Result) error {
	if len(res.Records) == 0 {
		return nil
	}
	sch := w.catalogue.Derive(res.Records)
	source := filepath.Base(res.Source)

	msgs := make([]kafkago.Message, 0, min(batchSize, len(res.Records)))
	for i, r := range res.Records {
		msg, err := serializeToMessage(sch, source, i, r)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
		if len(msgs) == batchSize || i == len(res.Records)-1 {
			if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
				return fmt.Errorf("publish records: %w", err)
			}
			msgs = msgs[:0]
		}
	}
	w.logger.Debug("records published", "source", source, "records", len(res.Records))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a record into a Kafka message. Variables in
// the schema that the record lacks are null.
func serializeToMessage(sch schema.Schema, source string, index int, r domain.Record) (kafkago.Message, error) {
	body := make(map[string]any, len(sch.Variables))
	for _, v := range sch.Variables {
		values := sch.Values(v, r)
		if len(v.Dims) == 1 {
			body[v.Name] = values[0]
		} else {
			body[v.Name] = values
		}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(source),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dialect", Value: []byte(r.Dialect)},
			{Key: "time_utc", Value: []byte(r.TimeUTC.Or(""))},
			{Key: "index", Value: []byte(strconv.Itoa(index))},
		},
	}, nil
}
