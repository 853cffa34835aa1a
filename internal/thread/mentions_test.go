package thread

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegments_PlainText(t *testing.T) {
	segments := Segments("just a comment")

	assert.Len(t, segments, 1)
	assert.False(t, segments[0].Mention)
}

func TestSegments_MentionInMiddle(t *testing.T) {
	segments := Segments("привет @ivan_99, как дела?")

	assert.Len(t, segments, 3)
	assert.Equal(t, "@ivan_99", segments[1].Text)
	assert.True(t, segments[1].Mention)
	assert.False(t, segments[0].Mention)
	assert.False(t, segments[2].Mention)
}

func TestSegments_LoneAtStaysPlain(t *testing.T) {
	segments := Segments("a @ b")

	assert.Len(t, segments, 1)
	assert.False(t, segments[0].Mention)
}

func TestSegments_Empty(t *testing.T) {
	assert.Nil(t, Segments(""))
}

// Конкатенация сегментов всегда восстанавливает исходный текст
func TestSegments_ConcatRestoresOriginal(t *testing.T) {
	cases := []string{
		"no mentions here",
		"@lead first",
		"trailing @user",
		"@a @b.c @d_e",
		"@@double",
		"только @юзер кириллица не входит в имя",
		"@",
	}
	for _, text := range cases {
		var b strings.Builder
		for _, seg := range Segments(text) {
			b.WriteString(seg.Text)
		}
		assert.Equal(t, text, b.String())
	}
}
