// Package kafka は打刻イベントを Kafka へ配信します。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ogurasousui/chronos/internal/core/timerecord"
	"github.com/ogurasousui/chronos/internal/platform/config"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// EventTypeTimeRecordCreated は打刻作成イベントの種別です。
const EventTypeTimeRecordCreated = "time_record.created"

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Publisher は timerecord.EventPublisher の Kafka 実装です。
type Publisher struct {
	client  producer
	admin   *kadm.Client
	topic   string
	timeout time.Duration
}

// NewPublisher は events 設定から Kafka クライアントを生成します。
func NewPublisher(cfg config.EventsConfig) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, errors.New("kafka: at least one broker is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}

	return &Publisher{client: client, admin: kadm.NewClient(client), topic: cfg.Topic, timeout: cfg.DeliveryTimeout}, nil
}

type timeRecordEvent struct {
	Event      string    `json:"event"`
	ID         int64     `json:"id"`
	EmployeeID int64     `json:"employeeId"`
	DateTime   time.Time `json:"dateTime"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PublishTimeRecordCreated は従業員 ID をキーとして打刻を配信します。同じ従業員のイベントは同じパーティションに並びます。
// ブローカーに届かない場合も DeliveryTimeout で打ち切ります。
func (p *Publisher) PublishTimeRecordCreated(ctx context.Context, rec *timerecord.TimeRecord) error {
	if rec == nil {
		return errors.New("kafka: time record is required")
	}

	payload, err := json.Marshal(timeRecordEvent{
		Event:      EventTypeTimeRecordCreated,
		ID:         rec.ID,
		EmployeeID: rec.EmployeeID,
		DateTime:   rec.DateTime,
		Type:       string(rec.Type),
		CreatedAt:  rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("kafka: encode event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(rec.EmployeeID, 10)),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event", Value: []byte(EventTypeTimeRecordCreated)},
		},
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce: %w", err)
	}
	return nil
}

// EnsureTopic はトピックが存在しなければ作成します。
func (p *Publisher) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	if p.admin == nil {
		return nil
	}

	resp, err := p.admin.CreateTopic(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("kafka: create topic %s: %w", p.topic, resp.Err)
	}
	return nil
}

// Close はクライアントを閉じます。
func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Close()
}
