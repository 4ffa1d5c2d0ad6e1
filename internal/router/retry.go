package router

import (
	"strings"

	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/trading"
)

// transientMarkers are substrings of provider errors worth a resubmission.
// A semantic revert is deterministic and never in this list.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"nonce too low",
	"replacement transaction underpriced",
	"already known",
	"connection refused",
	"connection reset",
	"EOF",
}

// IsTransient reports whether a failed execution is worth retrying. Only
// TRANSACTION_FAILED failures qualify, and only when the underlying message
// looks like a transport or nonce race rather than a revert.
func IsTransient(terr *trading.Error) bool {
	if terr == nil || terr.Code != trading.ErrTransactionFailed {
		return false
	}
	msg := terr.Error()
	if strings.Contains(msg, "execution reverted") {
		return false
	}
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
