package gps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ubxnav/internal/logging"
	"ubxnav/internal/publish"
	"ubxnav/internal/replay"
	"ubxnav/internal/ubx"
)

var openSerialFn = openSerial

// Config controls the receiver service.
//
// Device may be empty to auto-detect. Baud must be supported by the platform
// serial implementation.
type Config struct {
	Device       string
	Baud         int
	StrictLength bool
	StaleAfter   time.Duration

	// RecordPath, when set, tees every serial read into a capture file.
	RecordPath string
}

// Indicator reflects fix validity somewhere visible, e.g. an LED.
type Indicator interface {
	Set(valid bool)
}

type nopIndicator struct{}

func (nopIndicator) Set(bool) {}

const publishQueueLen = 16
const publishTimeout = 5 * time.Second

type Service struct {
	cfg    Config
	logger *zap.Logger
	pub    publish.Publisher
	led    Indicator

	// mu guards the parser and snap. The fix listener runs with mu held.
	mu     sync.Mutex
	parser *ubx.Parser
	snap   Snapshot
	wasFix bool

	// fixes queues snapshots for the publisher goroutine. It is closed once
	// all readers have stopped; closed is guarded by mu.
	fixes  chan Snapshot
	closed bool

	runMu   sync.Mutex
	cancel  context.CancelFunc
	closer  io.Closer
	started bool
	readers sync.WaitGroup
	pubDone chan struct{}
}

func New(cfg Config, logger *zap.Logger, pub publish.Publisher, led Indicator) *Service {
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 3 * time.Second
	}
	if pub == nil {
		pub = publish.NoOp{}
	}
	if led == nil {
		led = nopIndicator{}
	}
	s := &Service{
		cfg:    cfg,
		logger: logging.OrNop(logger),
		pub:    pub,
		led:    led,
		fixes:  make(chan Snapshot, publishQueueLen),
	}

	opts := []ubx.Option{ubx.WithFixListener(ubx.FixListenerFunc(s.onFix))}
	if cfg.StrictLength {
		opts = append(opts, ubx.WithStrictLength())
	}
	s.parser = ubx.NewParser(opts...)
	s.snap = Snapshot{Enabled: true, Device: cfg.Device, Baud: cfg.Baud}
	return s
}

// Start opens the serial receiver and decodes it in the background until
// ctx is cancelled or Close is called.
func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()
	if err := s.checkStartable(); err != nil {
		return err
	}

	device := strings.TrimSpace(s.cfg.Device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			s.setError("gps auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
			return fmt.Errorf("gps auto-detect failed")
		}
	}

	port, err := openSerialFn(device, s.cfg.Baud)
	if err != nil {
		s.setError(fmt.Sprintf("gps open failed device=%s baud=%d: %v", device, s.cfg.Baud, err))
		return fmt.Errorf("gps open %s: %w", device, err)
	}

	var rec *replay.Writer
	if s.cfg.RecordPath != "" {
		rec, err = replay.CreateWriter(s.cfg.RecordPath)
		if err != nil {
			_ = port.Close()
			return fmt.Errorf("capture create %s: %w", s.cfg.RecordPath, err)
		}
	}

	s.mu.Lock()
	s.snap.Source = "serial"
	s.snap.Device = device
	s.mu.Unlock()

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.closer = port
	s.started = true
	s.startPublisher()

	s.readers.Add(1)
	go func() {
		defer s.readers.Done()
		defer func() { _ = port.Close() }()
		if rec != nil {
			defer func() {
				if err := rec.Close(); err != nil {
					s.logger.Warn("capture close failed", zap.Error(err))
				}
			}()
		}

		s.logger.Info("gps enabled", zap.String("device", device), zap.Int("baud", s.cfg.Baud))
		buf := make([]byte, 512)
		for {
			if childCtx.Err() != nil {
				return
			}
			n, err := port.Read(buf)
			if n > 0 {
				if rec != nil {
					if werr := rec.WriteChunk(time.Now(), buf[:n]); werr != nil {
						s.logger.Warn("capture write failed", zap.Error(werr))
						rec = nil
					}
				}
				s.Feed(buf[:n])
			}
			if err != nil {
				if childCtx.Err() == nil {
					s.setError(fmt.Sprintf("gps read stopped: %v", err))
					s.logger.Error("gps read stopped", zap.Error(err))
				}
				return
			}
		}
	}()
	return nil
}

// Replay feeds a recorded capture through the decoder. It blocks until the
// capture ends (or forever with loop) or ctx is cancelled.
func (s *Service) Replay(ctx context.Context, records []replay.Record, speed float64, loop bool, sleeper replay.Sleeper) error {
	s.runMu.Lock()
	if err := s.checkStartable(); err != nil {
		s.runMu.Unlock()
		return err
	}
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true
	s.startPublisher()
	s.readers.Add(1)
	s.runMu.Unlock()
	defer s.readers.Done()

	s.mu.Lock()
	s.snap.Source = "replay"
	s.mu.Unlock()

	s.logger.Info("gps replay starting", zap.Int("records", len(records)), zap.Float64("speed", speed), zap.Bool("loop", loop))
	err := replay.Play(childCtx, records, speed, loop, sleeper, func(chunk []byte) error {
		s.Feed(chunk)
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Feed pushes raw receiver bytes through the decoder. Safe for concurrent use.
func (s *Service) Feed(chunk []byte) {
	s.mu.Lock()
	_, _ = s.parser.Write(chunk)
	valid := s.parser.IsValidFix()
	lost := s.wasFix && !valid
	s.wasFix = valid
	s.mu.Unlock()

	if lost {
		s.logger.Info("gps fix lost")
	}
	s.led.Set(valid)
}

// onFix runs inside Feed with s.mu held; it must not block.
func (s *Service) onFix(p *ubx.Parser) {
	rec := p.Record()
	s.snap.applyRecord(rec)
	s.snap.LastFixUTC = time.Now().UTC().Format(time.RFC3339Nano)

	snap := s.snapshotLocked()
	if s.closed {
		return
	}
	if !s.wasFix {
		s.wasFix = true
		s.logger.Info("gps fix acquired",
			zap.Stringer("fix_type", rec.FixType),
			zap.Uint8("satellites", rec.NumSV),
			zap.Float64("lat", snap.LatDeg),
			zap.Float64("lon", snap.LonDeg))
	}
	s.logger.Debug("gps fix", zap.Uint32("itow", rec.ITOW), zap.Uint32("fixes", snap.Fixes))

	select {
	case s.fixes <- snap:
	default:
		s.logger.Warn("publish queue full, dropping fix", zap.Uint32("itow", rec.ITOW))
	}
}

// startPublisher drains the fix queue until Close closes it, so fixes
// accepted before shutdown are still delivered.
func (s *Service) startPublisher() {
	s.pubDone = make(chan struct{})
	go func() {
		defer close(s.pubDone)
		for snap := range s.fixes {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := s.pub.Publish(ctx, snap); err != nil {
				s.logger.Warn("publish fix failed", zap.Error(err))
			}
			cancel()
		}
	}()
}

// Snapshot returns the current receiver state.
func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() Snapshot {
	out := s.snap
	out.Messages = s.parser.MessageCount()
	out.Fixes = s.parser.FixCount()
	out.Valid = s.parser.IsValidFix()
	if out.Fixes > 0 {
		age := s.parser.FixAge()
		out.FixAgeSec = age.Seconds()
		out.FixStale = age > s.cfg.StaleAfter
	}
	return out
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.closer != nil {
		_ = s.closer.Close()
		s.closer = nil
	}
	s.readers.Wait()

	s.mu.Lock()
	wasClosed := s.closed
	s.closed = true
	s.mu.Unlock()
	if wasClosed || s.pubDone == nil {
		return
	}
	close(s.fixes)
	<-s.pubDone
}

// checkStartable is called with runMu held.
func (s *Service) checkStartable() error {
	if s.started {
		return fmt.Errorf("gps service already started")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("gps service closed")
	}
	return nil
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastError = msg
}

func autoDetectDevice() string {
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
