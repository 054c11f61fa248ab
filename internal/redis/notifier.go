package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const ConfirmedChannel = "appointments.confirmed"

// ConfirmedEvent is published after an appointment reaches CONFIRMED.
// Delivery is fire-and-forget; the scheduling transaction has already
// committed by the time this is sent.
type ConfirmedEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

type PubSubNotifier struct {
	client *redis.Client
}

func NewPubSubNotifier(client *redis.Client) *PubSubNotifier {
	return &PubSubNotifier{client: client}
}

func (n *PubSubNotifier) AppointmentConfirmed(ctx context.Context, evt ConfirmedEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal confirmed event: %w", err)
	}

	if err := n.client.Publish(ctx, ConfirmedChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish confirmed event: %w", err)
	}
	return nil
}
