// Package store holds the client-side state containers for diary entries and family members.
//
// Every mutating operation is backend-authoritative: the request is sent first and
// local state changes only after the backend answers with the canonical record.
// Failures are returned as *Failure and leave local state untouched.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/health-diary/internal/apiclient"
	"github.com/and161185/health-diary/internal/kv"
	"github.com/and161185/health-diary/internal/validate"
)

// API is the backend surface used by the stores; *apiclient.Client implements it.
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
}

var _ API = (*apiclient.Client)(nil)

// Failure is the failed outcome of a store operation.
// Message is always non-empty and safe to show to the user.
type Failure struct {
	Op      string
	Message string
	Err     error
}

// Error implements error.
func (f *Failure) Error() string { return f.Message }

// Unwrap exposes the transport or validation cause.
func (f *Failure) Unwrap() error { return f.Err }

// errMalformed marks a 2xx response that did not carry the expected record.
var errMalformed = errors.New("malformed backend response")

// failure converts err into a *Failure, preferring the backend's own message.
func failure(op, generic string, err error) *Failure {
	f := &Failure{Op: op, Message: generic, Err: err}
	var ve *validate.Error
	var te *apiclient.TransportError
	switch {
	case errors.As(err, &ve):
		f.Message = ve.Error()
	case errors.As(err, &te) && te.FromServer:
		f.Message = te.Message
	}
	return f
}

// Options carries optional collaborators shared by both stores.
type Options struct {
	Slots     kv.Slots
	Logger    *zap.Logger
	Validator *validate.Validator
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Validator == nil {
		o.Validator = validate.New()
	}
	return o
}

// mirror writes snapshots of a store into a kv slot.
type mirror struct {
	slots kv.Slots
	key   string
	log   *zap.Logger
	mu    sync.Mutex
}

// save persists the value returned by snapshot. Failures are logged, not returned.
func (m *mirror) save(ctx context.Context, snapshot func() any) {
	if m.slots == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := json.Marshal(snapshot())
	if err != nil {
		m.log.Warn("encode snapshot", zap.String("slot", m.key), zap.Error(err))
		return
	}
	if err := m.slots.Put(ctx, m.key, b); err != nil {
		m.log.Warn("persist snapshot", zap.String("slot", m.key), zap.Error(err))
	}
}

// load decodes the slot into dst; ok is false when the slot was never written.
func (m *mirror) load(ctx context.Context, dst any) (ok bool, err error) {
	if m.slots == nil {
		return false, nil
	}
	b, err := m.slots.Get(ctx, m.key)
	if errors.Is(err, kv.ErrSlotNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read slot %s: %w", m.key, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decode slot %s: %w", m.key, err)
	}
	return true, nil
}
