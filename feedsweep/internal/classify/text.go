package classify

import (
	"regexp"
	"strings"
	"unicode"
)

// emoji approximates the Unicode Emoji property without the ASCII members
// (digits, '#', '*'), which would otherwise make every hashtag or number an
// emoji.
var emoji = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x00A9, Hi: 0x00A9, Stride: 1},
		{Lo: 0x00AE, Hi: 0x00AE, Stride: 1},
		{Lo: 0x203C, Hi: 0x203C, Stride: 1},
		{Lo: 0x2049, Hi: 0x2049, Stride: 1},
		{Lo: 0x2122, Hi: 0x2122, Stride: 1},
		{Lo: 0x2139, Hi: 0x2139, Stride: 1},
		{Lo: 0x2194, Hi: 0x2199, Stride: 1},
		{Lo: 0x21A9, Hi: 0x21AA, Stride: 1},
		{Lo: 0x231A, Hi: 0x231B, Stride: 1},
		{Lo: 0x2328, Hi: 0x2328, Stride: 1},
		{Lo: 0x23CF, Hi: 0x23CF, Stride: 1},
		{Lo: 0x23E9, Hi: 0x23F3, Stride: 1},
		{Lo: 0x23F8, Hi: 0x23FA, Stride: 1},
		{Lo: 0x24C2, Hi: 0x24C2, Stride: 1},
		{Lo: 0x25AA, Hi: 0x25AB, Stride: 1},
		{Lo: 0x25B6, Hi: 0x25B6, Stride: 1},
		{Lo: 0x25C0, Hi: 0x25C0, Stride: 1},
		{Lo: 0x25FB, Hi: 0x25FE, Stride: 1},
		{Lo: 0x2600, Hi: 0x27BF, Stride: 1},
		{Lo: 0x2934, Hi: 0x2935, Stride: 1},
		{Lo: 0x2B05, Hi: 0x2B07, Stride: 1},
		{Lo: 0x2B1B, Hi: 0x2B1C, Stride: 1},
		{Lo: 0x2B50, Hi: 0x2B50, Stride: 1},
		{Lo: 0x2B55, Hi: 0x2B55, Stride: 1},
		{Lo: 0x3030, Hi: 0x3030, Stride: 1},
		{Lo: 0x303D, Hi: 0x303D, Stride: 1},
		{Lo: 0x3297, Hi: 0x3297, Stride: 1},
		{Lo: 0x3299, Hi: 0x3299, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1F000, Hi: 0x1FAFF, Stride: 1},
	},
	LatinOffset: 2,
}

var (
	hashtagRe   = regexp.MustCompile(`#[^\s\p{Zs}#]+`)
	blankLineRe = regexp.MustCompile(`\n[\s\p{Zs}]*\n`)
	mentionRe   = regexp.MustCompile(`@(\w+)`)
)

// ContainsEmoji reports whether text has at least one emoji code point.
func ContainsEmoji(text string) bool {
	return strings.IndexFunc(text, func(r rune) bool {
		return unicode.Is(emoji, r)
	}) >= 0
}

// ContainsHashtag reports a '#' directly followed by a run of characters
// that are neither whitespace nor '#'.
func ContainsHashtag(text string) bool {
	return hashtagRe.MatchString(text)
}

// ContainsBlankLine reports two line breaks with only whitespace between.
func ContainsBlankLine(text string) bool {
	return blankLineRe.MatchString(text)
}

// Signals lists the text heuristics that hold for text.
func Signals(text string) []string {
	var s []string
	if ContainsEmoji(text) {
		s = append(s, "emoji")
	}
	if ContainsHashtag(text) {
		s = append(s, "hashtag")
	}
	if ContainsBlankLine(text) {
		s = append(s, "blank_line")
	}
	return s
}

// ShouldMutePromoted holds when at least two of the three heuristics hold.
func ShouldMutePromoted(text string) bool {
	return len(Signals(text)) >= 2
}
