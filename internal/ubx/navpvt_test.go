package ubx

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestMarshalPayload_Offsets(t *testing.T) {
	rec := sampleRecord(Fix3D)
	p := rec.MarshalPayload()
	if len(p) != NavPVTPayloadSize {
		t.Fatalf("payload len=%d want %d", len(p), NavPVTPayloadSize)
	}
	if got := binary.LittleEndian.Uint16(p[4:]); got != 2024 {
		t.Fatalf("year=%d", got)
	}
	if p[11] != rec.Valid {
		t.Fatalf("valid=0x%02x", p[11])
	}
	if got := int32(binary.LittleEndian.Uint32(p[16:])); got != rec.Nano {
		t.Fatalf("nano=%d want %d", got, rec.Nano)
	}
	if p[20] != byte(Fix3D) || p[23] != rec.NumSV {
		t.Fatalf("fixType=%d numSV=%d", p[20], p[23])
	}
	if got := int32(binary.LittleEndian.Uint32(p[24:])); got != rec.Lon {
		t.Fatalf("lon=%d want %d", got, rec.Lon)
	}
	if got := int32(binary.LittleEndian.Uint32(p[28:])); got != rec.Lat {
		t.Fatalf("lat=%d want %d", got, rec.Lat)
	}
	if got := binary.LittleEndian.Uint16(p[76:]); got != rec.PDOP {
		t.Fatalf("pdop=%d want %d", got, rec.PDOP)
	}
	if got := binary.LittleEndian.Uint32(p[80:]); got != rec.Reserved3 {
		t.Fatalf("reserved3=0x%x", got)
	}
}

func TestNavPVT_Units(t *testing.T) {
	rec := sampleRecord(Fix3D)
	if math.Abs(rec.LatDeg()-47.3456789) > 1e-9 {
		t.Fatalf("lat=%f", rec.LatDeg())
	}
	if math.Abs(rec.LonDeg()+122.3456789) > 1e-9 {
		t.Fatalf("lon=%f", rec.LonDeg())
	}
	if math.Abs(rec.HeadingDeg()+90) > 1e-9 {
		t.Fatalf("heading=%f", rec.HeadingDeg())
	}
	if math.Abs(rec.PDOPValue()-1.35) > 1e-9 {
		t.Fatalf("pdop=%f", rec.PDOPValue())
	}
	if !rec.GNSSFixOK() || rec.DiffSoln() {
		t.Fatalf("flags decode wrong: ok=%v diff=%v", rec.GNSSFixOK(), rec.DiffSoln())
	}
	if rec.PSMState() != 2 {
		t.Fatalf("psm=%d want 2", rec.PSMState())
	}
}

func TestNavPVT_UTC(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		rec := sampleRecord(Fix3D)
		rec.Nano = 123456789
		got, ok := rec.UTC()
		if !ok {
			t.Fatal("expected ok")
		}
		want := time.Date(2024, 6, 15, 12, 30, 45, 123456789, time.UTC)
		if !got.Equal(want) {
			t.Errorf("got %v want %v", got, want)
		}
	})

	t.Run("missing time flag", func(t *testing.T) {
		rec := sampleRecord(Fix3D)
		rec.Valid = ValidDate
		if _, ok := rec.UTC(); ok {
			t.Error("expected !ok when validTime not set")
		}
	})

	t.Run("nano clamp", func(t *testing.T) {
		rec := sampleRecord(Fix3D)
		rec.Nano = -5
		got, _ := rec.UTC()
		if got.Nanosecond() != 0 {
			t.Errorf("nano=%d want 0", got.Nanosecond())
		}
		rec.Nano = 2000000000
		got, _ = rec.UTC()
		if got.Nanosecond() != 999999999 {
			t.Errorf("nano=%d want 999999999", got.Nanosecond())
		}
	})
}
