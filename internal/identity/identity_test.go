package identity

import (
	"testing"

	"github.com/MosinFAM/feedsync/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSession(t *testing.T) {
	sess := NewSession("u1", models.Profile{UserID: "u1", DisplayName: "User One"})

	assert.True(t, sess.SignedIn())
	assert.Equal(t, "u1", sess.UserID())
	assert.Equal(t, "User One", sess.Profile().DisplayName)
}

func TestSession_Anonymous(t *testing.T) {
	sess := NewSession("", models.Profile{})

	assert.False(t, sess.SignedIn())
}

func TestProfileCache(t *testing.T) {
	sess := NewSession("u1", models.Profile{UserID: "u1"})

	_, ok := sess.CachedProfile("o1")
	assert.False(t, ok)

	sess.PutProfile(models.Profile{UserID: "o1", DisplayName: "Owner"})
	cached, ok := sess.CachedProfile("o1")
	assert.True(t, ok)
	assert.Equal(t, "Owner", cached.DisplayName)

	// Запись без ID игнорируется
	sess.PutProfile(models.Profile{DisplayName: "ghost"})
	_, ok = sess.CachedProfile("")
	assert.False(t, ok)
}
