//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/ceilometer-etl/internal/adapter/csvsink"
	"github.com/couchcryptid/ceilometer-etl/internal/adapter/file"
	"github.com/couchcryptid/ceilometer-etl/internal/adapter/kafka"
	"github.com/couchcryptid/ceilometer-etl/internal/config"
	"github.com/couchcryptid/ceilometer-etl/internal/decoder"
	"github.com/couchcryptid/ceilometer-etl/internal/observability"
	"github.com/couchcryptid/ceilometer-etl/internal/pipeline"
	"github.com/couchcryptid/ceilometer-etl/internal/schema"
	"github.com/couchcryptid/ceilometer-etl/internal/sample"
)

const testTopic = "test-records"

var t0 = time.Date(2013, 7, 1, 0, 0, 12, 0, time.UTC)

// publishedRecord holds a deserialized message read from the record topic.
type publishedRecord struct {
	Key     string
	Headers map[string]string
	Body    map[string]any
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("ceilometer-test"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// readRecord reads a single message from the consumer and deserializes it.
func readRecord(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedRecord {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from record topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body), "unmarshal record message")

	return publishedRecord{Key: string(msg.Key), Headers: headers, Body: body}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestKafkaWriter verifies that kafka.Writer publishes one message per
// decoded record, in file order.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	catalogue, err := schema.NewCatalogue()
	require.NoError(t, err)
	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, catalogue, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	dec := decoder.New(decoder.NewGrammar(), decoder.Options{Check: true}, discardLogger())
	msgs := sample.Series(sample.CL, t0, 30*time.Second, 3, sample.StampDateTime)
	res, err := dec.Decode(ctx, "A1307010.DAT", sample.DAT(msgs...))
	require.NoError(t, err)
	require.Len(t, res.Records, 3)

	require.NoError(t, writer.Load(ctx, res))

	consumer := newConsumer(t, broker)
	for i := range 3 {
		rec := readRecord(ctx, t, consumer)
		assert.Equal(t, "A1307010.DAT", rec.Key)
		assert.Equal(t, strconv.Itoa(i), rec.Headers["index"], "records arrive in file order")
		assert.Equal(t, "CL", rec.Headers["dialect"])
		assert.Equal(t, res.Records[i].TimeUTC.Or(""), rec.Headers["time_utc"])
		assert.Equal(t, rec.Headers["time_utc"], rec.Body["time_utc"])
		assert.Contains(t, rec.Body, "backscatter")
		assert.Nil(t, rec.Body["cbh_2"], "missing heights are null")
	}
}

// TestPipelineEndToEnd wires the full pipeline (file source, decoder, CSV
// sink and Kafka writer) and verifies every record reaches both loaders.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	in, out := t.TempDir(), t.TempDir()
	clMsgs := sample.Series(sample.CL, t0, 30*time.Second, 4, sample.StampDateTime)
	clMsgs[2].BadChecksum = true
	require.NoError(t, os.WriteFile(filepath.Join(in, "A1307010.DAT"), sample.DAT(clMsgs...), 0o600))
	ctMsgs := sample.Series(sample.CT, t0, 15*time.Second, 3, sample.StampEpoch)
	require.NoError(t, os.WriteFile(filepath.Join(in, "B1307010.DAT"), sample.DAT(ctMsgs...), 0o600))

	catalogue, err := schema.NewCatalogue()
	require.NoError(t, err)
	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, catalogue, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	dec := decoder.New(decoder.NewGrammar(), decoder.Options{Check: true}, discardLogger())
	loaders := []pipeline.Loader{csvsink.NewSink(out, catalogue, discardLogger()), writer}
	p := pipeline.New(file.NewSource(in, false), dec, loaders, discardLogger(),
		observability.NewMetricsForTesting(), pipeline.Options{Workers: 2})

	require.NoError(t, p.Run(ctx))

	stats := p.Stats()
	assert.Equal(t, 2, stats.Loaded)
	assert.Equal(t, 6, stats.Records)
	assert.Equal(t, 1, stats.Dropped)
	assert.FileExists(t, filepath.Join(out, "A1307010.csv"))
	assert.FileExists(t, filepath.Join(out, "B1307010.csv"))

	consumer := newConsumer(t, broker)
	dialects := map[string]int{}
	for range 6 {
		rec := readRecord(ctx, t, consumer)
		dialects[rec.Headers["dialect"]]++
	}
	assert.Equal(t, map[string]int{"CL": 3, "CT": 3}, dialects)

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "the record with a bad checksum is not published")
}
