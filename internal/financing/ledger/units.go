package ledger

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DropsPerXRP is the number of minor units in one XRP
const DropsPerXRP int64 = 1_000_000

// rippleEpoch is 2000-01-01T00:00:00Z in unix seconds
const rippleEpoch int64 = 946684800

// XRPToDrops converts whole XRP to drops
func XRPToDrops(xrp int64) int64 {
	return xrp * DropsPerXRP
}

// DropsToXRP converts drops to XRP
func DropsToXRP(drops int64) float64 {
	return float64(drops) / float64(DropsPerXRP)
}

// FormatDrops renders an XRP amount as the string drops field the ledger expects
func FormatDrops(xrp int64) string {
	return strconv.FormatInt(XRPToDrops(xrp), 10)
}

// ParseDrops parses a string drops field
func ParseDrops(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid drops amount %q: %w", s, err)
	}
	return v, nil
}

// ToRippleTime converts a wall-clock time to seconds since the ripple epoch
func ToRippleTime(t time.Time) uint32 {
	secs := t.Unix() - rippleEpoch
	if secs < 0 {
		return 0
	}
	return uint32(secs)
}

// FromRippleTime converts seconds since the ripple epoch to UTC
func FromRippleTime(secs uint32) time.Time {
	return time.Unix(int64(secs)+rippleEpoch, 0).UTC()
}

// StrToHex encodes a string as upper-case hex, the form used for URIs and credential types
func StrToHex(s string) string {
	return strings.ToUpper(hex.EncodeToString([]byte(s)))
}

// HexToStr decodes a hex field; undecodable input is returned unchanged
func HexToStr(h string) string {
	b, err := hex.DecodeString(h)
	if err != nil {
		return h
	}
	return string(b)
}
