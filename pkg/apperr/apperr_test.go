package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindValidation, KindOf(Validation("bad input")))
	require.Equal(t, KindAuthentication, KindOf(Authentication("bad token")))
	require.Equal(t, KindAuthorization, KindOf(Authorization("not yours")))
	require.Equal(t, KindNotFound, KindOf(NotFound("gone")))
	require.Equal(t, KindConflict, KindOf(Conflict("taken")))
	require.Equal(t, KindInternal, KindOf(Internal("boom", errors.New("cause"))))
	require.Equal(t, KindInternal, KindOf(errors.New("uncategorized")))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("zone not found"))
	require.Equal(t, KindNotFound, KindOf(err))
	require.True(t, IsKind(err, KindNotFound))
	require.False(t, IsKind(nil, KindInternal))
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("load event", cause)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "load event", err.Error())
}
