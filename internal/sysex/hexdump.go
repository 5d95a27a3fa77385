// internal/sysex/hexdump.go
package sysex

import (
	"fmt"
	"strings"
)

const bytesPerLine = 16

// Hex formats a frame as space separated hex, 16 bytes per line.
func Hex(frame []byte) string {
	var sb strings.Builder
	for i, c := range frame {
		if i > 0 {
			if i%bytesPerLine == 0 {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		}
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}
