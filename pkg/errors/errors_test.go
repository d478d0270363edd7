package errors_test

import (
	"context"
	"fmt"
	"testing"

	apperrors "github.com/orgball2608/reddit-research-bot/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code   int
		target error
	}{
		{429, apperrors.ErrRateLimited},
		{401, apperrors.ErrUnauthorized},
		{403, apperrors.ErrForbidden},
		{404, apperrors.ErrNotFound},
		{500, apperrors.ErrServiceUnavailable},
		{503, apperrors.ErrServiceUnavailable},
		{400, apperrors.ErrBadRequest},
		{422, apperrors.ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := apperrors.FromStatus(tt.code)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, fmt.Sprintf("http_%d", tt.code), apperrors.GetCode(err))
		})
	}

	assert.NoError(t, apperrors.FromStatus(200))
	assert.NoError(t, apperrors.FromStatus(204))
}

func TestIsBlocked(t *testing.T) {
	assert.True(t, apperrors.IsBlocked(apperrors.FromStatus(429)))
	assert.True(t, apperrors.IsBlocked(apperrors.FromStatus(403)))
	assert.True(t, apperrors.IsBlocked(apperrors.FromStatus(401)))
	assert.False(t, apperrors.IsBlocked(apperrors.FromStatus(500)))
	assert.False(t, apperrors.IsBlocked(nil))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, apperrors.IsTimeout(context.DeadlineExceeded))
	assert.True(t, apperrors.IsTimeout(apperrors.Wrap(apperrors.ErrTimeout, "llm call")))
	assert.False(t, apperrors.IsTimeout(apperrors.ErrBadRequest))
}

func TestWrapKeepsChain(t *testing.T) {
	err := apperrors.Wrap(apperrors.ErrNotFound, "brand lookup")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, "brand lookup", apperrors.GetMessage(err))
	assert.Nil(t, apperrors.Wrap(nil, "noop"))
}

func TestStatusClasses(t *testing.T) {
	assert.True(t, apperrors.IsRateLimited(apperrors.FromStatus(429)))
	assert.True(t, apperrors.IsBadRequest(apperrors.FromStatus(400)))
	assert.False(t, apperrors.IsBadRequest(apperrors.FromStatus(404)))
	assert.Equal(t, "unexpected status 404", apperrors.GetMessage(apperrors.FromStatus(404)))
	assert.Equal(t, "", apperrors.GetCode(fmt.Errorf("plain")))
}
