package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ogurasousui/chronos/internal/core/timerecord"
	"github.com/ogurasousui/chronos/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	closed  bool
	// stall が true の場合、ctx が終わるまで応答しません。
	stall bool
}

func (f *fakeProducer) ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	err := f.err
	if f.stall {
		<-ctx.Done()
		err = ctx.Err()
	}

	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: err})
	}
	return results
}

func (f *fakeProducer) Close() {
	f.closed = true
}

func TestPublisher_PublishTimeRecordCreated(t *testing.T) {
	t.Parallel()

	fake := &fakeProducer{}
	p := &Publisher{client: fake, topic: "attendance.time-records"}
	loc := time.FixedZone("UTC-03:00", -3*60*60)
	at := time.Date(2025, 3, 3, 8, 0, 0, 0, loc)

	err := p.PublishTimeRecordCreated(context.Background(), &timerecord.TimeRecord{
		ID:         10,
		EmployeeID: 7,
		DateTime:   at,
		Type:       timerecord.TypeArrival,
		CreatedAt:  at,
	})
	require.NoError(t, err)
	require.Len(t, fake.records, 1)

	record := fake.records[0]
	assert.Equal(t, "attendance.time-records", record.Topic)
	assert.Equal(t, "7", string(record.Key))

	var event map[string]any
	require.NoError(t, json.Unmarshal(record.Value, &event))
	assert.Equal(t, EventTypeTimeRecordCreated, event["event"])
	assert.Equal(t, "ARRIVAL", event["type"])
	assert.Equal(t, "2025-03-03T08:00:00-03:00", event["dateTime"])
}

func TestPublisher_ProduceError(t *testing.T) {
	t.Parallel()

	fake := &fakeProducer{err: errors.New("broker unavailable")}
	p := &Publisher{client: fake, topic: "t"}

	err := p.PublishTimeRecordCreated(context.Background(), &timerecord.TimeRecord{ID: 1, EmployeeID: 1, Type: timerecord.TypeExit})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestPublisher_DeliveryTimeout(t *testing.T) {
	t.Parallel()

	p := &Publisher{client: &fakeProducer{stall: true}, topic: "t", timeout: 50 * time.Millisecond}

	done := make(chan error, 1)
	go func() {
		done <- p.PublishTimeRecordCreated(context.Background(), &timerecord.TimeRecord{ID: 1, EmployeeID: 1, Type: timerecord.TypeArrival})
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("publish did not give up after the delivery timeout")
	}
}

func TestNewPublisher_UsesDeliveryTimeout(t *testing.T) {
	t.Parallel()

	p, err := NewPublisher(config.EventsConfig{Brokers: []string{"127.0.0.1:1"}, Topic: "t", ClientID: "test", DeliveryTimeout: 100 * time.Millisecond})
	require.NoError(t, err)
	defer p.Close()

	start := time.Now()
	err = p.PublishTimeRecordCreated(context.Background(), &timerecord.TimeRecord{ID: 1, EmployeeID: 1, Type: timerecord.TypeArrival})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPublisher_NilRecord(t *testing.T) {
	t.Parallel()

	p := &Publisher{client: &fakeProducer{}, topic: "t"}
	assert.Error(t, p.PublishTimeRecordCreated(context.Background(), nil))
}

func TestPublisher_Close(t *testing.T) {
	t.Parallel()

	fake := &fakeProducer{}
	p := &Publisher{client: fake}
	p.Close()
	assert.True(t, fake.closed)

	var nilPublisher *Publisher
	nilPublisher.Close()
}

func TestNewPublisher_RequiresBrokers(t *testing.T) {
	t.Parallel()

	_, err := NewPublisher(config.EventsConfig{Topic: "t"})
	assert.Error(t, err)
}

func TestNewPublisher_ImplementsEventPublisher(t *testing.T) {
	t.Parallel()

	var _ timerecord.EventPublisher = (*Publisher)(nil)
}
