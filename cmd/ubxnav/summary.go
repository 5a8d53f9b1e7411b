package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"ubxnav/internal/replay"
	"ubxnav/internal/ubx"
)

type captureSummary struct {
	Segments      int
	Chunks        int
	Bytes         int
	Messages      uint32
	Fixes         uint32
	MaxDuration   time.Duration
	FixTypeCounts map[ubx.FixType]int
}

// summarizeCapture decodes a capture offline. Segments are fed to one parser
// so frames that straddle a chunk boundary still count.
func summarizeCapture(records []replay.Record) captureSummary {
	s := captureSummary{FixTypeCounts: map[ubx.FixType]int{}}
	if len(records) == 0 {
		return s
	}

	p := ubx.NewParser()
	origin := time.Duration(0)
	hasChunks := false

	for _, r := range records {
		if r.Chunk == nil {
			s.Segments++
			origin = r.At
			continue
		}
		hasChunks = true
		s.Chunks++
		s.Bytes += len(r.Chunk)
		if at := r.At - origin; at > s.MaxDuration {
			s.MaxDuration = at
		}

		for _, b := range r.Chunk {
			before := p.MessageCount()
			p.Feed(b)
			if p.MessageCount() != before {
				s.FixTypeCounts[p.Record().FixType]++
			}
		}
	}
	if s.Segments == 0 && hasChunks {
		s.Segments = 1
	}
	s.Messages = p.MessageCount()
	s.Fixes = p.FixCount()
	return s
}

func printCaptureSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	recs, err := replay.ReadFile(path)
	if err != nil {
		return err
	}
	s := summarizeCapture(recs)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "chunks: %d\n", s.Chunks)
	fmt.Fprintf(w, "bytes: %d\n", s.Bytes)
	fmt.Fprintf(w, "messages: %d\n", s.Messages)
	fmt.Fprintf(w, "fixes: %d\n", s.Fixes)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)

	keys := make([]int, 0, len(s.FixTypeCounts))
	for k := range s.FixTypeCounts {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)
	fmt.Fprintf(w, "fix_type_counts:\n")
	for _, k := range keys {
		ft := ubx.FixType(k)
		fmt.Fprintf(w, "  %d (%s): %d\n", k, ft, s.FixTypeCounts[ft])
	}
	return nil
}
