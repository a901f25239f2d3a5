package dberr

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesKind(t *testing.T) {
	err := New(NotFound, "table %s", "users")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrAlreadyExists))
	assert.Equal(t, "table users", err.Error())
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(Internal, os.ErrPermission, "unable to write chunk %d", 3)

	assert.True(t, errors.Is(err, os.ErrPermission))
	assert.True(t, errors.Is(err, ErrInternal))
	assert.Contains(t, err.Error(), "unable to write chunk 3")
}

func TestKindOfThroughFmtWrap(t *testing.T) {
	inner := New(TypeMismatch, "int vs str")
	outer := fmt.Errorf("filter failed: %w", inner)

	require.Equal(t, TypeMismatch, KindOf(outer))
	assert.True(t, Is(outer, TypeMismatch))
	assert.Equal(t, Internal, KindOf(errors.New("foreign")))
}

func TestStartFailedWrapsInconsistent(t *testing.T) {
	err := Wrap(StartFailed, New(Inconsistent, "dir without metadata"), "start")

	assert.True(t, errors.Is(err, ErrStartFailed))
	assert.True(t, errors.Is(err, ErrInconsistent))
	assert.Equal(t, StartFailed, KindOf(err))
}
