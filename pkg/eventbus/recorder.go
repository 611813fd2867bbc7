package eventbus

import (
	"context"
	"sync"
)

// Recorder is a Publisher that keeps everything it is given. It backs
// tests and dry-run deployments.
type Recorder struct {
	published []Published
	mu        sync.Mutex
}

// Published is one recorded publish call.
type Published struct {
	Topic    string
	Envelope Envelope
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, topic string, e Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, Published{Topic: topic, Envelope: e})
	return nil
}

// All returns every recorded publish in order.
func (r *Recorder) All() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.published...)
}

// Types returns the event types recorded, in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.published))
	for _, p := range r.published {
		out = append(out, p.Envelope.EventType)
	}
	return out
}

// OfType returns the envelopes of the given type.
func (r *Recorder) OfType(eventType string) []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Envelope
	for _, p := range r.published {
		if p.Envelope.EventType == eventType {
			out = append(out, p.Envelope)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = nil
}
