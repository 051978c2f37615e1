// README: Outbound domain events for notification and reporting collaborators.
package events

import (
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const (
	TopicOrderStatus      = "colis.order.status"
	TopicWithdrawalStatus = "colis.withdrawal.status"
)

// OrderStatusEvent is emitted after every successful order transition.
type OrderStatusEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	FromStatus  string    `json:"from_status"`
	ToStatus    string    `json:"to_status"`
	ClientID    string    `json:"client_id"`
	CourierID   string    `json:"courier_id,omitempty"`
	At          time.Time `json:"at"`
}

// WithdrawalEvent is emitted when a withdrawal settles (completed or rejected).
type WithdrawalEvent struct {
	WithdrawalID string    `json:"withdrawal_id"`
	CourierID    string    `json:"courier_id"`
	Amount       string    `json:"amount"`
	Status       string    `json:"status"`
	At           time.Time `json:"at"`
}

// Publisher delivers serialized events to collaborators. Delivery is
// fire-and-forget from the core's perspective: a failed publish never rolls
// back committed state.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close() error
}

// Kafka publishes through a sarama synchronous producer.
type Kafka struct {
	producer sarama.SyncProducer
	log      *zap.Logger
}

func NewKafka(brokers []string, log *zap.Logger) (*Kafka, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Timeout = 5 * time.Second
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Kafka{producer: producer, log: log}, nil
}

func (k *Kafka) Publish(topic string, payload []byte) error {
	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return err
	}
	k.log.Debug("event published",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}

// Nop drops every event; used in tests and broker-less local runs.
type Nop struct{}

func (Nop) Publish(string, []byte) error { return nil }
func (Nop) Close() error                 { return nil }
