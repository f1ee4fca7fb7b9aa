package events

import (
	"context"
	"encoding/json"
	"time"

	"procurement-core/internal/domain/entity"

	"github.com/segmentio/kafka-go"
)

const ProposalReceived = "proposal.received"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher announces accepted proposals. Messages are keyed by request id so
// all proposals of one request land on the same partition in order.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			MaxAttempts:            5,
			WriteTimeout:           5 * time.Second,
			ReadTimeout:            5 * time.Second,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

func (p *KafkaPublisher) PublishProposalReceived(ctx context.Context, evt entity.ProposalEvent) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.RequestID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ProposalReceived)},
		},
		Time: evt.OccurredAt,
	})
}
