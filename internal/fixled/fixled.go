// Package fixled drives a GPIO output that is high while the receiver has a
// valid position fix.
package fixled

import (
	"sync"

	"go.uber.org/zap"

	"ubxnav/internal/logging"
)

type line interface {
	SetValue(v int) error
	Close() error
}

var openLineFn = openLine

type Config struct {
	Enable bool
	// Pin is BCM GPIO numbering.
	Pin int
}

// LED mirrors fix validity onto a GPIO line. A disabled or unavailable LED
// accepts Set calls and does nothing.
type LED struct {
	logger *zap.Logger

	mu   sync.Mutex
	line line
	on   bool
}

func New(cfg Config, logger *zap.Logger) *LED {
	led := &LED{logger: logging.OrNop(logger)}
	if !cfg.Enable {
		return led
	}
	l, err := openLineFn(cfg.Pin)
	if err != nil {
		led.logger.Warn("fix led unavailable", zap.Int("pin", cfg.Pin), zap.Error(err))
		return led
	}
	led.logger.Info("fix led enabled", zap.Int("pin", cfg.Pin))
	led.line = l
	return led
}

// Set drives the line; repeated values are not rewritten.
func (led *LED) Set(valid bool) {
	led.mu.Lock()
	defer led.mu.Unlock()
	if led.line == nil || valid == led.on {
		return
	}
	v := 0
	if valid {
		v = 1
	}
	if err := led.line.SetValue(v); err != nil {
		led.logger.Warn("fix led write failed", zap.Error(err))
		return
	}
	led.on = valid
}

func (led *LED) Close() {
	led.mu.Lock()
	defer led.mu.Unlock()
	if led.line == nil {
		return
	}
	_ = led.line.Close()
	led.line = nil
	led.on = false
}
