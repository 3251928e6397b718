package domain

import "fmt"

// LineState is the numeric DSL line state reported by the modem firmware.
type LineState uint32

// UnknownLineState is returned for codes missing from the table.
const UnknownLineState = "UNKNOWN"

var lineStateNames = map[LineState]string{
	0x00000000: "NOT_INITIALIZED",
	0x00000001: "EXCEPTION",
	0x00000010: "NOT_UPDATED",
	0x000000FF: "IDLE_REQUEST",
	0x00000100: "IDLE",
	0x000001FF: "SILENT_REQUEST",
	0x00000200: "SILENT",
	0x00000300: "HANDSHAKE",
	0x00000310: "BONDING_CLR",
	0x00000380: "FULL_INIT",
	0x000003C0: "SHORT_INIT_ENTRY",
	0x00000400: "DISCOVERY",
	0x00000500: "TRAINING",
	0x00000600: "ANALYSIS",
	0x00000700: "EXCHANGE",
	0x00000800: "SHOWTIME_NO_SYNC",
	0x00000801: "SHOWTIME_TC_SYNC",
	0x00000850: "ORDERLY_SHUTDOWN_REQUEST",
	0x00000890: "ORDERLY_SHUTDOWN",
	0x00000900: "FASTRETRAIN",
	0x00000A00: "LOWPOWER_L2",
	0x00000B00: "LOOPDIAGNOSTIC_ACTIVE",
	0x00000B10: "LOOPDIAGNOSTIC_DATA_EXCHANGE",
	0x00000B20: "LOOPDIAGNOSTIC_DATA_REQUEST",
	0x00000C00: "LOOPDIAGNOSTIC_COMPLETE",
	0x00000D00: "RESYNC",
	0x01000000: "TEST",
	0x01000001: "TEST_LOOP",
	0x01000010: "TEST_REVERB",
	0x01000020: "TEST_MEDLEY",
	0x01000030: "TEST_SHOWTIME_LOCK",
	0x01000040: "TEST_QUIET",
	0x02000000: "LOWPOWER_L3",
	0x03000000: "DISABLED",
}

// String returns the symbolic name, or UnknownLineState.
func (s LineState) String() string {
	if name, ok := lineStateNames[s]; ok {
		return name
	}
	return UnknownLineState
}

// Hex formats the code the way the firmware prints it.
func (s LineState) Hex() string {
	return fmt.Sprintf("0x%08X", uint32(s))
}

