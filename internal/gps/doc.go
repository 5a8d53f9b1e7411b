// Package gps runs a u-blox receiver: it reads the serial stream, decodes
// UBX-NAV-PVT with internal/ubx, and hands each accepted fix to the
// configured publishers.
//
// Receivers must be configured to emit NAV-PVT on the port being read; NMEA
// and other UBX traffic on the same port is skipped by the parser.
package gps
