package events

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func sampleResult() weather.EnsembleResult {
	return weather.EnsembleResult{
		Location:        weather.Location{Latitude: 35.0, Longitude: -97.0, Name: "Norman"},
		EventDate:       "2024-04-26",
		PrecipitationMM: 12.4,
		Probability:     0.87,
		Confidence:      weather.ConfidenceHigh,
		IssuedAt:        time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(sampleResult())
	require.NoError(t, err)

	assert.Equal(t, []byte("35:-97"), msg.Key)
	assert.Contains(t, string(msg.Value), `"precipitation_intensity_mm":12.4`)
	require.Len(t, msg.Headers, 4)
	assert.Equal(t, "confidence", msg.Headers[0].Key)
	assert.Equal(t, []byte("high"), msg.Headers[0].Value)
	assert.Equal(t, []byte("2024-04-26"), msg.Headers[1].Value)
	assert.Equal(t, []byte("0.87"), msg.Headers[2].Value)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[3].Value)
}

func TestKafkaPublisherPublish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.Publish(context.Background(), sampleResult()))
	require.Len(t, w.msgs, 1)

	w.err = errors.New("broker down")
	err := p.Publish(context.Background(), sampleResult())
	assert.ErrorContains(t, err, "Norman")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	assert.NoError(t, p.Publish(context.Background(), sampleResult()))
	assert.NoError(t, p.Close())
}
