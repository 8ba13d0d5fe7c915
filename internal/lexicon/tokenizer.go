package lexicon

import (
	"iter"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultMinLength is the default minimum token length in runes.
const DefaultMinLength = 2

// Tokenizer splits text into normalized tokens.
// A Tokenizer is immutable and safe for concurrent use.
type Tokenizer struct {
	minLength int
	script    *unicode.RangeTable
	stopWords StopWords
}

// TokenizerOption configures a Tokenizer.
type TokenizerOption func(*Tokenizer)

// WithMinLength sets the minimum token length in runes.
func WithMinLength(n int) TokenizerOption {
	return func(t *Tokenizer) {
		if n > 0 {
			t.minLength = n
		}
	}
}

// WithScript keeps only tokens whose letters all belong to script.
// A nil script accepts any letters.
func WithScript(script *unicode.RangeTable) TokenizerOption {
	return func(t *Tokenizer) {
		t.script = script
	}
}

// WithStopWords drops tokens contained in words.
func WithStopWords(words StopWords) TokenizerOption {
	return func(t *Tokenizer) {
		t.stopWords = words
	}
}

// NewTokenizer creates a Tokenizer. By default it keeps every word of at
// least DefaultMinLength runes.
func NewTokenizer(opts ...TokenizerOption) *Tokenizer {
	t := &Tokenizer{minLength: DefaultMinLength}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokens returns the tokens of text in order of appearance.
//
// Words are maximal runs of letters and combining marks. Each word is
// NFC-normalized and case-folded, then dropped if it is shorter than the
// minimum length, outside the script, or a stop word. The sequence is lazy
// and can be ranged over any number of times with identical results.
func (t *Tokenizer) Tokens(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		// A Caser is stateful, so each iteration gets its own.
		caser := cases.Fold()
		text := norm.NFC.String(text)

		start := -1
		for i, r := range text {
			if isWordRune(r) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				if token, ok := t.normalize(caser, text[start:i]); ok && !yield(token) {
					return
				}
				start = -1
			}
		}
		if start >= 0 {
			if token, ok := t.normalize(caser, text[start:]); ok {
				yield(token)
			}
		}
	}
}

// Normalize applies the token normalization and filters to a single word.
// The second result is false if the word is not a valid token.
func (t *Tokenizer) Normalize(word string) (string, bool) {
	return t.normalize(cases.Fold(), norm.NFC.String(word))
}

func (t *Tokenizer) normalize(caser cases.Caser, word string) (string, bool) {
	token := norm.NFC.String(caser.String(word))

	if utf8.RuneCountInString(token) < t.minLength {
		return "", false
	}

	letters := 0
	for _, r := range token {
		if !unicode.IsLetter(r) {
			continue
		}
		if t.script != nil && !unicode.Is(t.script, r) {
			return "", false
		}
		letters++
	}
	if letters == 0 {
		return "", false
	}

	if t.stopWords.Contains(token) {
		return "", false
	}
	return token, true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.Is(unicode.Mn, r)
}
