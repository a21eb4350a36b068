package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	streamName = "PAYMENT_EVENTS"

	SubjectPaymentApproved  = "payment.approved"
	SubjectPaymentRejected  = "payment.rejected"
	SubjectPaymentReleased  = "payment.released"
	SubjectPaymentRefunded  = "payment.refunded"
	SubjectPaymentCancelled = "payment.cancelled"
)

// PaymentEvent is the payload published for settlement state changes
type PaymentEvent struct {
	PaymentID          string    `json:"paymentId"`
	SourceType         string    `json:"sourceType"`
	SourceID           string    `json:"sourceId"`
	Status             string    `json:"status"`
	GrossAmount        int64     `json:"grossAmount"`
	CounterpartyAmount int64     `json:"counterpartyAmount"`
	CounterpartyID     string    `json:"counterpartyId"`
	Currency           string    `json:"currency"`
	Timestamp          time.Time `json:"timestamp"`
}

// Publisher publishes settlement events to NATS JetStream
type Publisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
}

// NewPublisher connects to NATS and ensures the payment event stream exists
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"payment.>"},
		Storage:  nats.FileStorage,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	return &Publisher{
		conn:   conn,
		js:     js,
		logger: logger.WithField("component", "events"),
	}, nil
}

// Publish publishes an event to a subject. Failures are returned for the
// caller to log; event delivery is best-effort by design of the dispatcher.
func (p *Publisher) Publish(subject string, event *PaymentEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := p.js.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	p.logger.WithFields(logrus.Fields{
		"subject":    subject,
		"payment_id": event.PaymentID,
	}).Debug("Published event")
	return nil
}

// IsConnected reports whether the NATS connection is up
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains and closes the NATS connection
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
