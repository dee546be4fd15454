package events

import (
	"encoding/hex"
	"strconv"
	"strings"

	"pointsvault/crypto"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func formatAddress(addr [20]byte) string {
	return crypto.FromRaw(addr).String()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func zeroAddress(addr [20]byte) bool {
	for _, b := range addr {
		if b != 0 {
			return false
		}
	}
	return true
}

func formatID(id [32]byte) string {
	return hex.EncodeToString(id[:])
}
