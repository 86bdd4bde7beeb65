package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event kinds carried on the payment events queue.
const (
	KindPaymentRegistered = "payment_registered"
	KindPaymentDeleted    = "payment_deleted"
)

// PaymentEvent is the lightweight message published when a payment is
// registered or deleted. The worker fetches full rows from storage.
type PaymentEvent struct {
	EventID      string    `json:"eventId"`
	Kind         string    `json:"kind"`
	PaymentID    int64     `json:"paymentId"`
	ObligationID int64     `json:"obligationId"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewPaymentEvent(kind string, paymentID, obligationID int64) *PaymentEvent {
	return &PaymentEvent{
		EventID:      uuid.NewString(),
		Kind:         kind,
		PaymentID:    paymentID,
		ObligationID: obligationID,
		Timestamp:    time.Now(),
	}
}

func (e *PaymentEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func PaymentEventFromJSON(data []byte) (*PaymentEvent, error) {
	var e PaymentEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
