// Package events publishes donation lifecycle events to Kafka.
package events

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"donation-service/config"
	"donation-service/internal/domain"

	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const TypeDonationConfirmed = "donation.confirmed"

// Publisher announces persisted donations to downstream consumers.
type Publisher interface {
	PublishDonationConfirmed(ctx context.Context, d *domain.Donation) error
	Close() error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DonationEvent is the JSON value of every message on the donations topic.
type DonationEvent struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	ReceiptNumber string    `json:"receipt_number"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Phone         string    `json:"phone"`
	DonationID    int64     `json:"donation_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type KafkaPublisher struct {
	writer MessageWriter
	logger *zap.Logger

	mu      sync.Mutex
	entropy io.Reader
}

// NewKafkaWriter builds the writer used in production.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.Timeout,
	}
}

func NewKafkaPublisher(w MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  w,
		logger:  logger,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (p *KafkaPublisher) newEventID(t time.Time) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), p.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (p *KafkaPublisher) PublishDonationConfirmed(ctx context.Context, d *domain.Donation) error {
	now := time.Now().UTC()
	id, err := p.newEventID(now)
	if err != nil {
		return fmt.Errorf("event id: %w", err)
	}

	occurred := d.CreatedAt
	if occurred.IsZero() {
		occurred = now
	}
	value, err := json.Marshal(DonationEvent{
		EventID:       id,
		Type:          TypeDonationConfirmed,
		ReceiptNumber: d.ReceiptNumber,
		Amount:        d.Amount.StringFixed(2),
		Currency:      domain.CurrencyKES,
		Phone:         d.Phone,
		DonationID:    d.ID,
		OccurredAt:    occurred.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// keyed by receipt so redeliveries of one donation land on one partition
	msg := kafka.Message{
		Key:   []byte(d.ReceiptNumber),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(TypeDonationConfirmed)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", TypeDonationConfirmed, err)
	}

	p.logger.Debug("donation event published",
		zap.String("event_id", id),
		zap.String("receipt_number", d.ReceiptNumber))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishDonationConfirmed(context.Context, *domain.Donation) error { return nil }

func (NoopPublisher) Close() error { return nil }
