package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_PublishEncodesJSON(t *testing.T) {
	w := &captureWriter{}
	p := NewProducerWithWriter(w, "gzip")

	err := p.Publish(context.Background(), "runs", []byte("k"), map[string]int{"n": 3})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "runs", w.msgs[0].Topic)
	assert.Equal(t, []byte("k"), w.msgs[0].Key)
	var got map[string]int
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, 3, got["n"])
}

func TestProducer_PublishBatch(t *testing.T) {
	w := &captureWriter{}
	p := NewProducerWithWriter(w, "lz4")

	require.NoError(t, p.PublishBatch(context.Background(), "runs", nil))
	assert.Empty(t, w.msgs)

	err := p.PublishBatch(context.Background(), "runs", []Message{
		{Key: []byte("a"), Value: "raw"},
		{Key: []byte("b"), Value: []byte("bytes")},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, []byte("raw"), w.msgs[0].Value)
	assert.Equal(t, []byte("bytes"), w.msgs[1].Value)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_WrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker unavailable")
	p := NewProducerWithWriter(&captureWriter{err: boom}, "gzip")

	err := p.Publish(context.Background(), "runs", nil, "x")
	assert.ErrorIs(t, err, boom)
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("zstd"))
	require.NoError(t, err)
	assert.Equal(t, "zstd", p.comp)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Gzip, parseCompression("unknown"))
}
