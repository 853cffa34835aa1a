package thread

import "strings"

// Сегмент текста комментария: обычный текст или @упоминание
type Segment struct {
	Text    string `json:"text"`
	Mention bool   `json:"mention"`
}

// Segments разбивает текст на сегменты по @упоминаниям.
// Конкатенация сегментов всегда даёт исходный текст.
func Segments(text string) []Segment {
	if text == "" {
		return nil
	}

	var segments []Segment
	var plain strings.Builder

	flush := func() {
		if plain.Len() > 0 {
			segments = append(segments, Segment{Text: plain.String()})
			plain.Reset()
		}
	}

	runes := []rune(text)
	for i := 0; i < len(runes); {
		if runes[i] == '@' {
			j := i + 1
			for j < len(runes) && isMentionRune(runes[j]) {
				j++
			}
			// Одинокая @ без имени остаётся обычным текстом
			if j > i+1 {
				flush()
				segments = append(segments, Segment{Text: string(runes[i:j]), Mention: true})
				i = j
				continue
			}
		}
		plain.WriteRune(runes[i])
		i++
	}
	flush()
	return segments
}

func isMentionRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '.':
		return true
	}
	return false
}
