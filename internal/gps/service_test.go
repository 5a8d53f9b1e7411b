package gps

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ubxnav/internal/replay"
	"ubxnav/internal/ubx"
)

type chanPublisher struct {
	ch chan any
}

func newChanPublisher() *chanPublisher { return &chanPublisher{ch: make(chan any, 8)} }

func (p *chanPublisher) Publish(_ context.Context, fix any) error {
	p.ch <- fix
	return nil
}

func (p *chanPublisher) Close() {}

type recordingIndicator struct {
	mu     sync.Mutex
	states []bool
}

func (r *recordingIndicator) Set(valid bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, valid)
}

type noSleep struct{}

func (noSleep) Sleep(context.Context, time.Duration) error { return nil }

func frame(fix ubx.FixType) []byte {
	rec := ubx.NavPVT{
		Class:   ubx.ClassNAV,
		ID:      ubx.IDNAVPVT,
		Length:  ubx.NavPVTPayloadSize,
		ITOW:    123000,
		Year:    2024,
		Month:   3,
		Day:     9,
		Hour:    12,
		Min:     30,
		Sec:     15,
		Valid:   ubx.ValidDate | ubx.ValidTime,
		FixType: fix,
		Flags:   ubx.FlagGNSSFixOK,
		NumSV:   11,
		Lat:     451234567,
		Lon:     -1223456789,
		HMSL:    152400,
		GSpeed:  2500,
		PDOP:    145,
	}
	return rec.AppendFrame(nil)
}

func waitSnapshot(t *testing.T, ch <-chan any) Snapshot {
	t.Helper()
	select {
	case v := <-ch:
		snap, ok := v.(Snapshot)
		if !ok {
			t.Fatalf("published %T, want Snapshot", v)
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for published fix")
	}
	return Snapshot{}
}

func TestService_FeedUpdatesSnapshot(t *testing.T) {
	led := &recordingIndicator{}
	svc := New(Config{}, nil, nil, led)

	svc.Feed(frame(ubx.Fix3D))
	snap := svc.Snapshot()
	if !snap.Valid || snap.Messages != 1 || snap.Fixes != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.FixType != "3d" || snap.Satellites != 11 || !snap.GNSSFixOK {
		t.Fatalf("unexpected fix fields: %+v", snap)
	}
	if snap.LatDeg < 45.1234 || snap.LatDeg > 45.1235 {
		t.Fatalf("LatDeg=%v", snap.LatDeg)
	}
	if snap.AltMSLM != 152.4 {
		t.Fatalf("AltMSLM=%v want 152.4", snap.AltMSLM)
	}
	if snap.GNSSTime != "2024-03-09T12:30:15Z" {
		t.Fatalf("GNSSTime=%q", snap.GNSSTime)
	}

	svc.Feed(frame(ubx.FixTimeOnly))
	snap = svc.Snapshot()
	if snap.Valid || snap.Messages != 2 || snap.Fixes != 1 {
		t.Fatalf("time-only should not count as fix: %+v", snap)
	}
	// Position fields keep the last valid fix.
	if snap.FixType != "3d" {
		t.Fatalf("FixType=%q want 3d", snap.FixType)
	}

	led.mu.Lock()
	defer led.mu.Unlock()
	if len(led.states) != 2 || !led.states[0] || led.states[1] {
		t.Fatalf("indicator states=%v want [true false]", led.states)
	}
}

func TestService_CorruptFrameIgnored(t *testing.T) {
	svc := New(Config{}, nil, nil, nil)
	b := frame(ubx.Fix3D)
	b[20] ^= 0x01
	svc.Feed(b)
	if snap := svc.Snapshot(); snap.Messages != 0 || snap.Valid {
		t.Fatalf("corrupt frame accepted: %+v", snap)
	}
}

func TestService_StrictLength(t *testing.T) {
	rec := ubx.NavPVT{Class: ubx.ClassNAV, ID: ubx.IDNAVPVT, Length: 92, FixType: ubx.Fix3D}
	b := rec.AppendFrame(nil)

	lenient := New(Config{}, nil, nil, nil)
	lenient.Feed(b)
	if lenient.Snapshot().Messages != 1 {
		t.Fatalf("lenient service should accept declared length 92")
	}

	strict := New(Config{StrictLength: true}, nil, nil, nil)
	strict.Feed(b)
	if strict.Snapshot().Messages != 0 {
		t.Fatalf("strict service accepted declared length 92")
	}
}

func TestService_FixStale(t *testing.T) {
	svc := New(Config{StaleAfter: time.Millisecond}, nil, nil, nil)
	if snap := svc.Snapshot(); snap.FixStale || snap.FixAgeSec != 0 {
		t.Fatalf("no fix yet should not report age: %+v", snap)
	}
	svc.Feed(frame(ubx.Fix2D))
	time.Sleep(5 * time.Millisecond)
	snap := svc.Snapshot()
	if !snap.FixStale || snap.FixAgeSec <= 0 {
		t.Fatalf("expected stale fix: %+v", snap)
	}
}

func TestService_ReplayPublishesFixes(t *testing.T) {
	pub := newChanPublisher()
	svc := New(Config{}, nil, pub, nil)
	defer svc.Close()

	b := frame(ubx.Fix3D)
	records := []replay.Record{
		{At: 0},
		{At: 10 * time.Millisecond, Chunk: b[:30]},
		{At: 20 * time.Millisecond, Chunk: b[30:]},
		{At: 30 * time.Millisecond, Chunk: frame(ubx.FixNone)},
	}
	if err := svc.Replay(context.Background(), records, 1, false, noSleep{}); err != nil {
		t.Fatalf("Replay() error: %v", err)
	}

	snap := waitSnapshot(t, pub.ch)
	if !snap.Valid || snap.Fixes != 1 || snap.ITOW != 123000 {
		t.Fatalf("unexpected published fix: %+v", snap)
	}
	if got := svc.Snapshot(); got.Source != "replay" || got.Messages != 2 {
		t.Fatalf("unexpected snapshot after replay: %+v", got)
	}
	select {
	case v := <-pub.ch:
		t.Fatalf("unexpected second publish: %+v", v)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestService_StartReadsSerial(t *testing.T) {
	pr, pw := io.Pipe()
	orig := openSerialFn
	t.Cleanup(func() { openSerialFn = orig })
	var gotPath string
	var gotBaud int
	openSerialFn = func(path string, baud int) (io.ReadCloser, error) {
		gotPath, gotBaud = path, baud
		return pr, nil
	}

	capture := filepath.Join(t.TempDir(), "gps.log")
	pub := newChanPublisher()
	svc := New(Config{Device: "/dev/ttyFAKE", Baud: 38400, RecordPath: capture}, nil, pub, nil)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if gotPath != "/dev/ttyFAKE" || gotBaud != 38400 {
		t.Fatalf("opened %q@%d", gotPath, gotBaud)
	}
	if err := svc.Start(context.Background()); err == nil {
		t.Fatalf("second Start() should fail")
	}

	b := frame(ubx.Fix3D)
	go func() { _, _ = pw.Write(b) }()

	snap := waitSnapshot(t, pub.ch)
	if snap.Source != "serial" || snap.Device != "/dev/ttyFAKE" {
		t.Fatalf("unexpected source: %+v", snap)
	}
	svc.Close()

	recs, err := replay.ReadFile(capture)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	var got []byte
	for _, r := range recs {
		got = append(got, r.Chunk...)
	}
	if string(got) != string(b) {
		t.Fatalf("capture mismatch: got %d bytes want %d", len(got), len(b))
	}
}

func TestService_StartOpenError(t *testing.T) {
	orig := openSerialFn
	t.Cleanup(func() { openSerialFn = orig })
	openSerialFn = func(string, int) (io.ReadCloser, error) {
		return nil, errors.New("permission denied")
	}

	svc := New(Config{Device: "/dev/ttyFAKE"}, nil, nil, nil)
	if err := svc.Start(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if snap := svc.Snapshot(); snap.LastError == "" {
		t.Fatalf("expected LastError to be set")
	}
}
