//go:build !linux || (!arm && !arm64)

package fixled

import "fmt"

func openLine(pin int) (line, error) {
	return nil, fmt.Errorf("fixled: gpio unsupported on this platform")
}
