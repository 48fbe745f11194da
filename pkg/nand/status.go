package nand

import (
	"fmt"
	"strings"
)

// Status is the device status register as returned by [CmdReadStatus].
type Status uint8

const (
	StatusFail  Status = 1 << 0 // last operation failed
	StatusFailC Status = 1 << 1 // previous cached operation failed
	StatusCSP   Status = 1 << 3 // command specific
)

// Failed reports whether the fail bit is set.
func (s Status) Failed() bool { return s&StatusFail != 0 }

func (s Status) String() string {
	if s == 0 {
		return "ok"
	}

	var parts []string

	if s&StatusFail != 0 {
		parts = append(parts, "fail")
	}

	if s&StatusFailC != 0 {
		parts = append(parts, "failc")
	}

	if s&StatusCSP != 0 {
		parts = append(parts, "csp")
	}

	if rest := s &^ (StatusFail | StatusFailC | StatusCSP); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%02x", uint8(rest)))
	}

	return strings.Join(parts, "|")
}
