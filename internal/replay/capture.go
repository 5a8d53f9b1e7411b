package replay

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Capture format: line-oriented text, one serial read per line.
//
// - Blank lines and lines starting with '#' are ignored.
// - "START" resets the origin; following offsets are relative to it.
// - Data lines are <t_ns>,<hex>: nanoseconds since START and the raw bytes
//   returned by one read from the receiver.
//
// Chunk boundaries are whatever the serial driver delivered, so a NAV-PVT
// frame may span several lines.

type Record struct {
	At    time.Duration
	Chunk []byte // nil for START markers
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFile loads every record of the capture at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	lineNum := 0
	for s.Scan() {
		lineNum++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{})
			continue
		}

		tsStr, hexStr, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("capture line %d: missing comma", lineNum)
		}
		tsStr = strings.TrimSpace(tsStr)
		hexStr = strings.ReplaceAll(strings.TrimSpace(hexStr), " ", "")
		if tsStr == "" || hexStr == "" {
			return nil, fmt.Errorf("capture line %d: empty field", lineNum)
		}

		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("capture line %d: bad timestamp: %w", lineNum, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("capture line %d: negative timestamp %d", lineNum, tsNs)
		}
		b, err := hex.DecodeString(hexStr)
		if err != nil {
			return nil, fmt.Errorf("capture line %d: bad hex: %w", lineNum, err)
		}

		recs = append(recs, Record{At: time.Duration(tsNs), Chunk: b})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// Writer appends serial chunks to a capture file.
type Writer struct {
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now()}, nil
}

func (ww *Writer) WriteChunk(now time.Time, chunk []byte) error {
	if ww.closed {
		return errors.New("capture writer is closed")
	}
	if len(chunk) == 0 {
		return nil
	}
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), hex.EncodeToString(chunk))
	return err
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

// Sleeper waits between chunks during playback.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Duration returns the longest offset from its START marker in the capture.
func Duration(records []Record) time.Duration {
	var origin, longest time.Duration
	for _, r := range records {
		if r.Chunk == nil {
			origin = r.At
			continue
		}
		if at := r.At - origin; at > longest {
			longest = at
		}
	}
	return longest
}

// Play delivers each chunk to cb with its recorded spacing scaled by speed
// (2.0 plays twice as fast). START markers reset the origin. A nil sleeper
// uses real time.
func Play(ctx context.Context, records []Record, speed float64, loop bool, sleeper Sleeper, cb func(chunk []byte) error) error {
	if speed <= 0 {
		return fmt.Errorf("speed must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	for {
		var origin, lastAt time.Duration
		haveLast := false

		for _, r := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if r.Chunk == nil {
				origin = r.At
				lastAt = 0
				haveLast = false
				continue
			}

			at := r.At - origin
			if at < 0 {
				at = 0
			}
			if haveLast {
				wait := time.Duration(float64(at-lastAt) / speed)
				if wait > 0 {
					if err := sleeper.Sleep(ctx, wait); err != nil {
						return err
					}
				}
			}

			if err := cb(r.Chunk); err != nil {
				return err
			}
			lastAt = at
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}
