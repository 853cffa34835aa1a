package gateway

import (
	"errors"
	"testing"

	perrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf_TypedError(t *testing.T) {
	err := E("gateway.CreateLike", KindConflict, errors.New("duplicate"))

	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(err, KindNotFound))
}

func TestKindOf_WrappedError(t *testing.T) {
	err := E("gateway.FetchProfile", KindNotFound, errors.New("no rows"))
	wrapped := perrors.Wrap(err, "while reconciling")

	// Категория видна и через обёртку
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestKindOf_UnknownErrorIsNetwork(t *testing.T) {
	assert.Equal(t, KindNetwork, KindOf(errors.New("plain failure")))
}

func TestIsKind_NilError(t *testing.T) {
	assert.False(t, IsKind(nil, KindNetwork))
}

func TestErrorMessage(t *testing.T) {
	err := E("gateway.DeleteComment", KindForbidden, errors.New("not the author"))

	assert.Contains(t, err.Error(), "gateway.DeleteComment")
	assert.Contains(t, err.Error(), "forbidden")
	assert.Contains(t, err.Error(), "not the author")
}
