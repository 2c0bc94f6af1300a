// Package payments receives and records payment-provider webhook events
// and maps them to subscription changes.
package payments

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Event names the provider sends.
const (
	EventNewSubscription       = "new_subscription"
	EventCancelledSubscription = "cancelled_subscription"
)

// DefaultPeriod is the subscription period granted when the payload does
// not carry an expiry.
const DefaultPeriod = 30 * 24 * time.Hour

// Event is a decoded webhook event.
type Event struct {
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
	Payload   EventPayload `json:"payload"`
}

// EventPayload carries the provider's subscription details.
type EventPayload struct {
	EventID        string    `json:"event_id"`
	TelegramUserID int64     `json:"telegram_user_id"`
	SubscriptionID int64     `json:"subscription_id,omitempty"`
	Amount         int64     `json:"amount,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
}

// eventSchema validates the shape of incoming payloads before decoding.
// Unknown event names pass validation and are acknowledged but ignored,
// so provider-side additions do not cause retry storms.
const eventSchema = `{
  "type": "object",
  "required": ["name", "payload"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "created_at": {"type": "string"},
    "payload": {
      "type": "object",
      "required": ["telegram_user_id"],
      "properties": {
        "event_id": {"type": "string"},
        "telegram_user_id": {"type": "integer", "minimum": 1},
        "subscription_id": {"type": "integer"},
        "amount": {"type": "integer", "minimum": 0},
        "currency": {"type": "string"},
        "expires_at": {"type": "string"}
      }
    }
  }
}`

var compiledSchema = gojsonschema.NewStringLoader(eventSchema)

// ParseEvent validates the raw body against the event schema and decodes
// it. Validation failures are terminal: the provider is sending malformed
// data and a retry will not help.
func ParseEvent(body []byte) (*Event, error) {
	result, err := gojsonschema.Validate(compiledSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to validate event payload: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return nil, fmt.Errorf("invalid event payload: %s", errs[0])
		}
		return nil, fmt.Errorf("invalid event payload")
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return &event, nil
}

// Period returns how long the paid period lasts, derived from the expiry
// when the provider sends one.
func (e *Event) Period() time.Duration {
	if !e.Payload.ExpiresAt.IsZero() {
		if period := time.Until(e.Payload.ExpiresAt); period > 0 {
			return period
		}
	}
	return DefaultPeriod
}
