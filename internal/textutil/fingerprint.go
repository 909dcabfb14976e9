package textutil

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTokenLength drops articles and other short function words.
const minTokenLength = 3

// Fingerprint represents a term-frequency vector for text similarity comparison.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint creates a fingerprint from the provided text.
// Returns nil if the text produces no valid tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var sum float64
	for _, count := range counts {
		sum += count * count
	}
	return &Fingerprint{
		tokens: counts,
		norm:   math.Sqrt(sum),
	}
}

// Tokenize lowercases text, folds accents ("é" -> "e") and splits on anything
// that is not a letter or digit. Tokens shorter than three runes are dropped.
func Tokenize(text string) []string {
	folded := foldAccents(strings.ToLower(text))
	raw := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if len([]rune(token)) < minTokenLength {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// TokenCount returns the number of unique tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// DedupeThemes drops themes that repeat an earlier kept theme, either
// case-insensitively or with a fingerprint similarity of at least threshold.
// Blank themes are skipped. Order is preserved.
func DedupeThemes(themes []string, threshold float64) (kept, dropped []string) {
	var prints []*Fingerprint
	for _, theme := range themes {
		theme = strings.TrimSpace(theme)
		if theme == "" {
			continue
		}
		fp := NewFingerprint(theme)
		if isDuplicateTheme(theme, fp, kept, prints, threshold) {
			dropped = append(dropped, theme)
			continue
		}
		kept = append(kept, theme)
		prints = append(prints, fp)
	}
	return kept, dropped
}

func isDuplicateTheme(theme string, fp *Fingerprint, kept []string, prints []*Fingerprint, threshold float64) bool {
	for i, prior := range kept {
		if strings.EqualFold(prior, theme) {
			return true
		}
		if fp != nil && CosineSimilarity(fp, prints[i]) >= threshold {
			return true
		}
	}
	return false
}
