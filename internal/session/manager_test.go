package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trent/listing-alerts/internal/proxy"
)

type failingIdentities struct {
	err error
}

func (f failingIdentities) RandomIdentity(_ context.Context) (proxy.Identity, error) {
	return proxy.Identity{}, f.err
}

func TestAcquire_FailsWithoutIdentity(t *testing.T) {
	// Identity acquisition happens before any browser process is started, so
	// this path must not launch anything.
	cause := errors.New("directory unreachable")
	m := NewManager(failingIdentities{err: cause}, true)

	s, err := m.Acquire(context.Background())
	require.Error(t, err)
	assert.Nil(t, s)

	var creationErr *CreationError
	require.True(t, errors.As(err, &creationErr))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "no egress identity")
}

func TestReset_NilSessionStillAcquires(t *testing.T) {
	m := NewManager(failingIdentities{err: errors.New("down")}, false)

	s, err := m.Reset(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, s)
}

func TestNewManager_HeadlessSetting(t *testing.T) {
	assert.True(t, NewManager(failingIdentities{}, true).headless)
	assert.False(t, NewManager(failingIdentities{}, false).headless)
}

func TestCreationError_Formatting(t *testing.T) {
	err := &CreationError{Message: "boom"}
	assert.Equal(t, "session creation error: boom", err.Error())

	wrapped := &CreationError{Message: "boom", Cause: errors.New("inner")}
	assert.Contains(t, wrapped.Error(), "inner")
}
