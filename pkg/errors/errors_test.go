package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeThroughWrapping(t *testing.T) {
	base := New(CodeInvalidGeometry, "line needs 2 points")
	wrapped := fmt.Errorf("create: %w", base)

	assert.True(t, IsCode(wrapped, CodeInvalidGeometry))
	assert.False(t, IsCode(wrapped, CodeNotFound))
	assert.Equal(t, CodeInvalidGeometry, CodeOf(wrapped))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.False(t, IsCode(nil, CodeUnknown))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeTransferFailed, "save snapshot").WithMeta("project", "p1")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "transfer_failed: save snapshot: connection refused", err.Error())
	assert.Equal(t, "p1", err.Meta["project"])
	assert.Equal(t, "invalid: bad", Wrap(nil, CodeInvalid, "bad").Error())
}
