package envelope

import (
	"encoding/hex"
	"fmt"
)

// FormatTraceparent renders a W3C Trace Context v1 header value:
// "00-<trace-id:32hex>-<span-id:16hex>-<flags:2hex>".
func FormatTraceparent(traceID, spanID [16]byte, spanIDLen int, flags byte) string {
	return fmt.Sprintf("00-%s-%s-%02x", hex.EncodeToString(traceID[:]), hex.EncodeToString(spanID[:spanIDLen]), flags)
}

// ValidTraceparent reports whether s is a structurally valid W3C
// traceparent: version "00", 32 hex trace-id, 16 hex span-id, 2 hex
// flags. An all-zero trace-id or span-id is rejected as invalid.
func ValidTraceparent(s string) bool {
	if len(s) != 55 {
		return false
	}
	if s[0:2] != "00" || s[2] != '-' || s[35] != '-' || s[52] != '-' {
		return false
	}
	traceID := s[3:35]
	spanID := s[36:52]
	flags := s[53:55]

	if _, err := hex.DecodeString(traceID); err != nil {
		return false
	}
	if _, err := hex.DecodeString(spanID); err != nil {
		return false
	}
	if _, err := hex.DecodeString(flags); err != nil {
		return false
	}
	if allZero(traceID) || allZero(spanID) {
		return false
	}
	return true
}

func allZero(hexStr string) bool {
	for _, c := range hexStr {
		if c != '0' {
			return false
		}
	}
	return true
}
