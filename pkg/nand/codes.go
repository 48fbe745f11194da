package nand

import (
	"fmt"
	"strconv"
	"strings"
)

// Code is a one-byte protocol command code. Values follow the ONFI/Toggle
// command set and are stable.
type Code uint8

// Read cycles.
const (
	CmdRead1st               Code = 0x00
	CmdRead2nd               Code = 0x30
	CmdReadCacheSeq          Code = 0x31
	CmdReadCacheRandom2nd    Code = 0x31
	CmdReadMultiPlane2nd     Code = 0x32
	CmdCopybackRead2nd       Code = 0x35
	CmdReadCacheEnd          Code = 0x3f
	CmdChangeReadColumn1st   Code = 0x05
	CmdChangeReadColumn2nd   Code = 0xe0
	CmdChangeReadColumnEx1st Code = 0x06
)

// Erase cycles.
const (
	CmdErase1st           Code = 0x60
	CmdErase2nd           Code = 0xd0
	CmdEraseMultiPlane2nd Code = 0xd1
)

// Program cycles. Copyback program, change write column and change row
// address share one code.
const (
	CmdProgram1st           Code = 0x80
	CmdProgram2nd           Code = 0x10
	CmdProgramMultiPlane2nd Code = 0x11
	CmdCacheProgram2nd      Code = 0x15
	CmdCopybackProgram1st   Code = 0x85
	CmdChangeWriteColumn    Code = 0x85
	CmdChangeRowAddress     Code = 0x85
)

// Administrative commands, dispatched to [Model.Command].
const (
	CmdReadStatus         Code = 0x70
	CmdReadStatusEx       Code = 0x78
	CmdReadID             Code = 0x90
	CmdVolumeSelect       Code = 0xe1
	CmdODTConfigure       Code = 0xe2
	CmdReadParameterPage  Code = 0xec
	CmdUniqueID           Code = 0xed
	CmdGetFeature         Code = 0xee
	CmdSetFeature         Code = 0xef
	CmdLUNGetFeature      Code = 0xd4
	CmdLUNSetFeature      Code = 0xd5
	CmdZQCalibrationShort Code = 0xd9
	CmdZQCalibrationLong  Code = 0xf9
	CmdResetLUN           Code = 0xfa
	CmdSyncReset          Code = 0xfc
	CmdReset              Code = 0xff
)

var codeNames = map[Code]string{
	CmdRead1st:               "read",
	CmdRead2nd:               "read-2nd",
	CmdReadCacheSeq:          "read-cache",
	CmdReadMultiPlane2nd:     "read-multi-plane-2nd",
	CmdCopybackRead2nd:       "copyback-read-2nd",
	CmdReadCacheEnd:          "read-cache-end",
	CmdChangeReadColumn1st:   "change-read-column",
	CmdChangeReadColumn2nd:   "change-read-column-2nd",
	CmdChangeReadColumnEx1st: "change-read-column-ex",
	CmdErase1st:              "erase",
	CmdErase2nd:              "erase-2nd",
	CmdEraseMultiPlane2nd:    "erase-multi-plane-2nd",
	CmdProgram1st:            "program",
	CmdProgram2nd:            "program-2nd",
	CmdProgramMultiPlane2nd:  "program-multi-plane-2nd",
	CmdCacheProgram2nd:       "cache-program-2nd",
	CmdCopybackProgram1st:    "copyback-program",
	CmdReadStatus:            "read-status",
	CmdReadStatusEx:          "read-status-ex",
	CmdReadID:                "read-id",
	CmdVolumeSelect:          "volume-select",
	CmdODTConfigure:          "odt-configure",
	CmdReadParameterPage:     "read-parameter-page",
	CmdUniqueID:              "unique-id",
	CmdGetFeature:            "get-feature",
	CmdSetFeature:            "set-feature",
	CmdLUNGetFeature:         "lun-get-feature",
	CmdLUNSetFeature:         "lun-set-feature",
	CmdZQCalibrationShort:    "zq-calibration-short",
	CmdZQCalibrationLong:     "zq-calibration-long",
	CmdResetLUN:              "reset-lun",
	CmdSyncReset:             "sync-reset",
	CmdReset:                 "reset",
}

// String returns the command's short name, or its hex value if unknown.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return fmt.Sprintf("0x%02x", uint8(c))
}

// Known reports whether c is part of the command set.
func (c Code) Known() bool {
	_, ok := codeNames[c]

	return ok
}

// IsAdmin reports whether c bypasses cycle counting and goes straight to
// [Model.Command].
func (c Code) IsAdmin() bool {
	switch c {
	case CmdReadStatus, CmdReadStatusEx, CmdReadID, CmdVolumeSelect,
		CmdODTConfigure, CmdReadParameterPage, CmdUniqueID,
		CmdGetFeature, CmdSetFeature, CmdLUNGetFeature, CmdLUNSetFeature,
		CmdZQCalibrationShort, CmdZQCalibrationLong,
		CmdResetLUN, CmdSyncReset, CmdReset:
		return true
	default:
		return false
	}
}

// ParseCode accepts a command name as printed by [Code.String] or a hex byte
// with or without a 0x prefix.
func ParseCode(s string) (Code, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	for c, name := range codeNames {
		if name == s {
			return c, nil
		}
	}

	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: unknown command %q", ErrInvalidSequence, s)
	}

	return Code(v), nil
}
