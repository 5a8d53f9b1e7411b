// Package publish delivers accepted position fixes to downstream sinks.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Publisher sends one fix to a sink. Implementations must be safe for use
// from a single goroutine; Multi does not add locking.
type Publisher interface {
	Publish(ctx context.Context, fix any) error
	Close()
}

// NoOp drops everything. It is used when no sink is configured.
type NoOp struct{}

func (NoOp) Publish(context.Context, any) error { return nil }

func (NoOp) Close() {}

// Multi fans a fix out to every publisher. All sinks are attempted; errors
// are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, fix any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, fix); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() {
	for _, p := range m {
		p.Close()
	}
}

func encode(fix any) ([]byte, error) {
	body, err := json.Marshal(fix)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fix: %w", err)
	}
	return body, nil
}
