//go:build !linux

package gps

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

func openSerial(path string, baud int) (io.ReadCloser, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", path, err)
	}
	// Reads return (0, nil) on timeout so the read loop can observe ctx.
	if err := port.SetReadTimeout(time.Second); err != nil {
		_ = port.Close()
		return nil, err
	}
	return port, nil
}
