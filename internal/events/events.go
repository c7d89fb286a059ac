// Package events publishes purchase notifications to Kafka for the
// notification service.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const DefaultTopic = "successful_payments"

// PurchaseEvent 는 notification 서비스의 PurchaseInfo 형식을 따릅니다.
type PurchaseEvent struct {
	TransactionID string `json:"transaction_id"`
	UserID        string `json:"user_id"`
	UserEmail     string `json:"user_email"`
	Provider      string `json:"provider"`
	ProductID     string `json:"product_id"`
	Variant       string `json:"variant,omitempty"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	PaidAt        string `json:"paid_at"`
}

type Publisher interface {
	PublishPurchase(ctx context.Context, evt PurchaseEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaPublisher(broker, topic string, logger *zap.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireAll,
			WriteTimeout:           10 * time.Second,
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}
}

// PublishPurchase 는 트랜잭션 ID 를 키로 씁니다. 같은 결제는 같은 파티션으로 갑니다.
func (p *KafkaPublisher) PublishPurchase(ctx context.Context, evt PurchaseEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal purchase event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.TransactionID),
		Value: value,
		Time:  time.Now(),
	}); err != nil {
		return fmt.Errorf("publish purchase event: %w", err)
	}

	p.logger.Info("purchase event published", zap.String("transaction_id", evt.TransactionID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher 는 Kafka 가 설정되지 않았을 때 사용합니다.
type NopPublisher struct{}

func (NopPublisher) PublishPurchase(context.Context, PurchaseEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
