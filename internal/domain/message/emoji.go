package message

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

const maxEmojiBytes = 64

// ValidEmoji accepts exactly one user-perceived character. Plain letters,
// digits and punctuation are rejected; keycap and flag sequences pass.
func ValidEmoji(emoji string) bool {
	if emoji == "" || len(emoji) > maxEmojiBytes || strings.TrimSpace(emoji) != emoji {
		return false
	}
	if uniseg.GraphemeClusterCount(emoji) != 1 {
		return false
	}
	runes := []rune(emoji)
	for _, r := range runes {
		if unicode.IsControl(r) {
			return false
		}
	}
	if len(runes) == 1 {
		r := runes[0]
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsPunct(r)
	}
	return true
}
