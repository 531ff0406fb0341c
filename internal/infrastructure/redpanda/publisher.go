package redpanda

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/notify"
	"github.com/wardboard/go-ward/internal/ward"
)

// Sender is the part of Producer the publisher needs
type Sender interface {
	Produce(ctx context.Context, topic, key string, value []byte) error
	ProduceAsync(ctx context.Context, topic, key string, value []byte, callback func(error))
}

// Publisher forwards user notifications to the notification feed topic and
// completed discharges to the discharge topic. Records are keyed by patient
// id so a patient's events stay ordered.
type Publisher struct {
	sender             Sender
	notificationsTopic string
	dischargesTopic    string
	logger             *zap.Logger
}

// NewPublisher creates a publisher. Empty topics fall back to the defaults.
func NewPublisher(sender Sender, notificationsTopic, dischargesTopic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notificationsTopic == "" {
		notificationsTopic = TopicNotifications
	}
	if dischargesTopic == "" {
		dischargesTopic = TopicDischarges
	}
	return &Publisher{
		sender:             sender,
		notificationsTopic: notificationsTopic,
		dischargesTopic:    dischargesTopic,
		logger:             logger,
	}
}

// Notify publishes n without blocking the caller
func (p *Publisher) Notify(ctx context.Context, n notify.Notice) {
	event := notify.ToNotification(n)
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode notification", zap.Error(err))
		return
	}
	p.sender.ProduceAsync(ctx, p.notificationsTopic, event.PatientID, value, nil)
}

// PublishDischarge publishes a completed discharge and waits for the ack
func (p *Publisher) PublishDischarge(ctx context.Context, ev ward.DischargeEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode discharge event: %w", err)
	}
	if err := p.sender.Produce(ctx, p.dischargesTopic, ev.PatientID, value); err != nil {
		return fmt.Errorf("publish discharge event: %w", err)
	}
	return nil
}
