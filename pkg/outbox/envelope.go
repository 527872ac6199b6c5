package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is stamped on events that do not pin their own version.
const EnvelopeVersion = 1

// ErrEmptyPayload is returned for envelopes whose data is missing or null.
var ErrEmptyPayload = errors.New("envelope data is empty")

// ActorRef identifies who produced the event. System jobs leave it nil.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON document stored in outbox_events.payload and
// published unchanged as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope wraps event.Data with a fresh event id.
func NewEnvelope(event DomainEvent) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode %s payload: %w", event.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = EnvelopeVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	return env, nil
}

// ParseEnvelope decodes raw and checks the event id and data are usable.
func ParseEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if _, err := env.ID(); err != nil {
		return PayloadEnvelope{}, err
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, ErrEmptyPayload
	}
	return env, nil
}

// ID parses EventID.
func (e PayloadEnvelope) ID() (uuid.UUID, error) {
	id, err := uuid.Parse(e.EventID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("envelope event id %q: %w", e.EventID, err)
	}
	return id, nil
}
