package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/trading"
)

func TestIsTransient(t *testing.T) {
	transient := []string{
		"request timeout",
		"context deadline exceeded",
		"nonce too low",
		"replacement transaction underpriced",
		"already known",
		"connection refused",
	}
	for _, msg := range transient {
		err := trading.NewError(trading.ErrTransactionFailed, msg)
		assert.True(t, IsTransient(err), "expected %q to be transient", msg)
	}
}

func TestIsTransient_RevertsNever(t *testing.T) {
	err := trading.NewError(trading.ErrTransactionFailed, "execution reverted")
	assert.False(t, IsTransient(err))

	// even when the revert surfaced through a flaky transport
	wrapped := trading.WrapError(trading.ErrTransactionFailed, "submission failed",
		errors.New("execution reverted: timeout guard"))
	assert.False(t, IsTransient(wrapped))
}

func TestIsTransient_OnlyTransactionFailures(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(trading.NewError(trading.ErrInsufficientBalance, "timeout")))
	assert.False(t, IsTransient(trading.NewError(trading.ErrTransactionFailed, "something novel")))
}
