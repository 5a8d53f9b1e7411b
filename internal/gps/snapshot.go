package gps

import (
	"time"

	"ubxnav/internal/ubx"
)

// Snapshot is the service's view of the receiver, suitable for JSON.
// Position fields describe the most recent valid fix.
type Snapshot struct {
	Enabled  bool `json:"enabled"`
	Valid    bool `json:"valid"`
	FixStale bool `json:"fix_stale"`

	Source string `json:"source,omitempty"`
	Device string `json:"device,omitempty"`
	Baud   int    `json:"baud,omitempty"`

	Messages uint32 `json:"messages"`
	Fixes    uint32 `json:"fixes"`

	FixType    string  `json:"fix_type,omitempty"`
	GNSSFixOK  bool    `json:"gnss_fix_ok"`
	DiffSoln   bool    `json:"diff_soln"`
	Satellites int     `json:"satellites"`
	LatDeg     float64 `json:"lat_deg"`
	LonDeg     float64 `json:"lon_deg"`
	HeightM    float64 `json:"height_m"`
	AltMSLM    float64 `json:"alt_msl_m"`
	HorizAccM  float64 `json:"horiz_acc_m"`
	VertAccM   float64 `json:"vert_acc_m"`
	VelNorthMS float64 `json:"vel_n_ms"`
	VelEastMS  float64 `json:"vel_e_ms"`
	VelDownMS  float64 `json:"vel_d_ms"`
	GroundMS   float64 `json:"ground_ms"`
	HeadingDeg float64 `json:"heading_deg"`
	PDOP       float64 `json:"pdop"`
	ITOW       uint32  `json:"itow_ms"`

	// GNSSTime is the receiver's UTC when date and time are flagged valid.
	GNSSTime   string  `json:"gnss_time,omitempty"`
	FixAgeSec  float64 `json:"fix_age_sec,omitempty"`
	LastFixUTC string  `json:"last_fix_utc,omitempty"`
	LastError  string  `json:"last_error,omitempty"`
}

// applyRecord copies the position solution of rec into s.
func (s *Snapshot) applyRecord(rec ubx.NavPVT) {
	s.FixType = rec.FixType.String()
	s.GNSSFixOK = rec.GNSSFixOK()
	s.DiffSoln = rec.DiffSoln()
	s.Satellites = int(rec.NumSV)
	s.LatDeg = rec.LatDeg()
	s.LonDeg = rec.LonDeg()
	s.HeightM = float64(rec.Height) / 1000.0
	s.AltMSLM = rec.HMSLMeters()
	s.HorizAccM = rec.HAccMeters()
	s.VertAccM = rec.VAccMeters()
	s.VelNorthMS = float64(rec.VelN) / 1000.0
	s.VelEastMS = float64(rec.VelE) / 1000.0
	s.VelDownMS = float64(rec.VelD) / 1000.0
	s.GroundMS = rec.GroundSpeedMS()
	s.HeadingDeg = rec.HeadingDeg()
	s.PDOP = rec.PDOPValue()
	s.ITOW = rec.ITOW
	s.GNSSTime = ""
	if t, ok := rec.UTC(); ok {
		s.GNSSTime = t.Format(time.RFC3339Nano)
	}
}
