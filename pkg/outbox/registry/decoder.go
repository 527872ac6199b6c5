package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/outbox"
)

// ErrNoDecoder is returned for an event type and version nobody registered.
var ErrNoDecoder = errors.New("no decoder registered")

type decoderFunc func(payload json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry decodes envelope data by event type and envelope version,
// so consumers can accept several payload versions during a rollout.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]decoderFunc)}
}

// NewDecoderRegistryFor registers the current envelope version of every
// published event, decoding into the same struct the publisher validates.
func NewDecoderRegistryFor(events *EventRegistry) *DecoderRegistry {
	reg := NewDecoderRegistry()
	for eventType, desc := range events.entries {
		reg.Register(eventType, outbox.EnvelopeVersion, func(payload json.RawMessage) (any, error) {
			target := desc.PayloadFactory()
			if err := json.Unmarshal(payload, target); err != nil {
				return nil, err
			}
			return target, nil
		})
	}
	return reg
}

// Register replaces any decoder already stored for eventType and version.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decode decoderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[decoderKey{eventType, version}] = decode
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decode, ok := r.decoders[decoderKey{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s v%d", ErrNoDecoder, eventType, version)
	}
	return decode(payload)
}
