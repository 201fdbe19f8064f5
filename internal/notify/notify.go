// Package notify delivers alert messages over the configured transports.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoTransports is returned by a Fanout without any transport.
var ErrNoTransports = errors.New("no notification transports configured")

// Transport is one delivery channel.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg string) error
}

// Fanout sends every message to all transports. A message counts as
// delivered when at least one transport accepts it.
type Fanout struct {
	transports []Transport
	log        *slog.Logger
}

// NewFanout creates a Fanout over transports.
func NewFanout(log *slog.Logger, transports ...Transport) *Fanout {
	return &Fanout{transports: transports, log: log}
}

// Len returns the number of transports.
func (f *Fanout) Len() int { return len(f.transports) }

// Send delivers msg to every transport and returns an error only when all of
// them failed.
func (f *Fanout) Send(ctx context.Context, msg string) error {
	if len(f.transports) == 0 {
		return ErrNoTransports
	}

	var errs []error
	for _, t := range f.transports {
		if err := t.Send(ctx, msg); err != nil {
			f.log.Warn("transport failed", "transport", t.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
			continue
		}
		f.log.Debug("transport delivered", "transport", t.Name())
	}
	if len(errs) == len(f.transports) {
		return errors.Join(errs...)
	}
	return nil
}
