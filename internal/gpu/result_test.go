package gpu

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestResult_String(t *testing.T) {
	assert.Equal(t, "ZE_RESULT_SUCCESS", ResultSuccess.String())
	assert.Equal(t, "ZE_RESULT_ERROR_UNSUPPORTED_SIZE", ResultErrorUnsupportedSize.String())
	assert.Equal(t, "ZE_RESULT_0x12345", Result(0x12345).String())
}

func TestResultError(t *testing.T) {
	assert.NoError(t, resultError("zeInit", ResultSuccess))

	err := resultError("zeMemAllocShared", ResultErrorUnsupportedSize)
	assert.EqualError(t, err, "zeMemAllocShared: ZE_RESULT_ERROR_UNSUPPORTED_SIZE (0x78000009)")

	wrapped := fmt.Errorf("failed to allocate: %w", errors.Wrap(err, "shared buffer"))
	assert.True(t, IsResult(wrapped, ResultErrorUnsupportedSize))
	assert.False(t, IsResult(wrapped, ResultErrorInvalidArgument))
	assert.Equal(t, ResultErrorUnsupportedSize, CodeOf(wrapped))

	assert.Equal(t, ResultSuccess, CodeOf(nil))
	assert.Equal(t, ResultErrorUnknown, CodeOf(errors.New("plain")))
	assert.False(t, IsResult(nil, ResultSuccess))

	withLog := &ResultError{Call: "zeModuleCreate", Code: ResultErrorModuleBuildFailure, BuildLog: "error: undeclared identifier"}
	assert.Contains(t, withLog.Error(), "0x70000004")
	assert.Contains(t, withLog.Error(), "undeclared identifier")
}
