package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	escapedWhitespace  = strings.NewReplacer(`\r\n`, " ", `\n`, " ", `\r`, " ", `\t`, " ")
	bracketDirection   = regexp.MustCompile(`\[[^\]]*\]`)
	parenDirection     = regexp.MustCompile(`(?i)\(\s*(?:music|musique|pause|scene|scène|sound|son|sfx|bruitage|intro|outro|narrat\w*|voice[- ]?over|voix off|cut|coupe|transition|beat|silence|rires?|laughs?|applause|applaudissements)\b[^)]*\)`)
	headingMarker      = regexp.MustCompile(`^\s{0,3}#{1,6}\s*`)
	quoteMarker        = regexp.MustCompile(`^\s*(?:>\s*)+`)
	bulletMarker       = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)])\s+`)
	speakerLabel       = regexp.MustCompile(`(?i)^\s*(?:narrat(?:or|eur|rice)|voix off|voice[- ]?over|host|speaker)\s*:\s*`)
	leadingUnderscore  = regexp.MustCompile(`(^|[\s(])_+`)
	trailingUnderscore = regexp.MustCompile(`_+([\s).,!?;:…]|$)`)
	spaceBeforeComma   = regexp.MustCompile(`\s+([,.…)])`)
	spaceAfterParen    = regexp.MustCompile(`\(\s+`)
)

// CleanForSpeech strips formatting that a text-to-speech engine would read
// aloud: markdown emphasis, heading, quote and list markers, backticks,
// bracketed stage directions and parenthesised cues such as "(music)".
// Literal "\n" escapes and real line breaks become spaces, the result is
// NFC-normalized and runs of whitespace collapse to a single space.
func CleanForSpeech(s string) string {
	s = escapedWhitespace.Replace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = headingMarker.ReplaceAllString(line, "")
		line = quoteMarker.ReplaceAllString(line, "")
		line = bulletMarker.ReplaceAllString(line, "")
		line = speakerLabel.ReplaceAllString(line, "")
		lines[i] = line
	}
	s = strings.Join(lines, " ")

	s = bracketDirection.ReplaceAllString(s, " ")
	s = parenDirection.ReplaceAllString(s, " ")
	s = strings.NewReplacer("**", "", "*", "", "__", "", "~~", "", "`", "").Replace(s)
	s = leadingUnderscore.ReplaceAllString(s, "$1")
	s = trailingUnderscore.ReplaceAllString(s, "$1")

	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	s = spaceAfterParen.ReplaceAllString(s, "(")
	s = spaceBeforeComma.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "()", "")
	return strings.Join(strings.Fields(s), " ")
}
