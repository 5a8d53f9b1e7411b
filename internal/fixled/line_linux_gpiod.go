//go:build linux && (arm || arm64)

package fixled

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// openLine requests the given BCM GPIO as a digital output via the Linux GPIO
// character device, initially low.
func openLine(pin int) (line, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("fixled: invalid gpio pin %d", pin)
	}

	// On Pi, line names are commonly "GPIO17", etc.
	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if name := e.Name(); strings.HasPrefix(name, "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		l, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("ubxnav-fix"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpiodLine{chip: chip, line: l}, nil
	}

	return nil, fmt.Errorf("fixled: gpio line %q not found (or busy)", lineName)
}

type gpiodLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodLine) SetValue(v int) error {
	if g.line == nil {
		return fmt.Errorf("fixled: gpio line closed")
	}
	return g.line.SetValue(v)
}

func (g *gpiodLine) Close() error {
	if g.line == nil {
		return nil
	}
	_ = g.line.SetValue(0)
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
