package server

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err    error
		kind   ErrorKind
		silent bool
	}{
		{ErrInvalidUsername, KindValidation, false},
		{ErrSessionNotFound, KindNotFound, false},
		{ErrSessionFull, KindCapacity, false},
		{ErrNotHost, KindStateConflict, true},
		{ErrNotReady, KindStateConflict, true},
		{ErrStaleAddress, KindStateConflict, true},
		{ErrUnknownCommand, KindUnknownCommand, false},
		{errors.Wrap(ErrSessionFull, "joining"), KindCapacity, false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			k, ok := KindOf(tt.err)
			assert.True(t, ok)
			assert.Equal(t, tt.kind, k)
			assert.Equal(t, tt.silent, IsSilent(tt.err))
		})
	}

	_, ok := KindOf(errors.New("boom"))
	assert.False(t, ok)
	assert.False(t, IsSilent(errors.New("boom")))
}
