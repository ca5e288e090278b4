package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorChainText(t *testing.T) {
	raw := errors.New("connection reset by peer")
	err := Wrap(Protocol, "failed to upload part", Wrap(Transport, "failed to send request", raw))

	assert.Equal(t, "failed to upload part: failed to send request: connection reset by peer", err.Error())
}

func TestNewAndNewf(t *testing.T) {
	err := New(Validation, "root path must start with /")
	assert.Equal(t, "root path must start with /", err.Error())
	assert.Equal(t, Validation, KindOf(err))

	err = Newf(Protocol, "unexpected status %d", 502)
	assert.Equal(t, "unexpected status 502", err.Error())
	assert.Equal(t, Protocol, KindOf(err))
}

func TestWrapNilYieldsNil(t *testing.T) {
	assert.Nil(t, Wrap(Transport, "failed to send", nil))
	assert.Nil(t, Wrapf(Transport, nil, "failed to send %s", "request"))
}

func TestKindOf(t *testing.T) {
	t.Run("OutermostKindWins", func(t *testing.T) {
		inner := New(Authorization, "token expired")
		outer := Wrap(Protocol, "failed to create session", inner)

		assert.Equal(t, Protocol, KindOf(outer))
	})

	t.Run("UnclassifiedIsInternal", func(t *testing.T) {
		assert.Equal(t, Internal, KindOf(errors.New("plain")))
	})

	t.Run("FmtWrappedStillFound", func(t *testing.T) {
		err := fmt.Errorf("failed to start task: %w", New(NotFound, "message not found"))
		assert.Equal(t, NotFound, KindOf(err))
	})
}

func TestIsKind(t *testing.T) {
	raw := errors.New("401 Unauthorized")
	err := Wrap(Protocol, "failed to query session", Wrap(Authorization, "token rejected", raw))

	// Both the outer and inner classifications are visible in the chain.
	assert.True(t, IsKind(err, Protocol))
	assert.True(t, IsKind(err, Authorization))
	assert.False(t, IsKind(err, Validation))
	assert.False(t, IsKind(nil, Protocol))
}

func TestUnwrap(t *testing.T) {
	raw := errors.New("raw")
	err := Wrap(Internal, "failed to persist task", raw)

	require.ErrorIs(t, err, raw)
}
