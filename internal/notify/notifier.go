// Package notify delivers transactional email.
package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoRecipient is returned when a message has no usable address.
var ErrNoRecipient = errors.New("notify: recipient address missing")

// Template is a rendered message ready to send.
type Template struct {
	Name    string
	Subject string
	Text    string
	HTML    string
}

// Notifier sends a rendered template to an address.
type Notifier interface {
	Send(ctx context.Context, address string, t Template) error
}

// Nop discards every message. It is used when no mail provider is configured.
type Nop struct{}

func (Nop) Send(context.Context, string, Template) error { return nil }

// Sent is a message captured by Recorder.
type Sent struct {
	Address  string
	Template Template
}

// Recorder keeps messages in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	// Err, when set, is returned from every Send and nothing is recorded.
	Err error
}

func (r *Recorder) Send(_ context.Context, address string, t Template) error {
	if strings.TrimSpace(address) == "" {
		return ErrNoRecipient
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, Sent{Address: address, Template: t})
	return nil
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}
