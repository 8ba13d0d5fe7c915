package lexicon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode"

	"github.com/hashicorp/go-multierror"
	"github.com/kljensen/snowball"
)

// ErrUnknownToken is returned by an Analyzer that cannot classify a token.
var ErrUnknownToken = errors.New("token not recognized by analyzer")

// Analyzer maps a surface token to its lemma.
// Implementations must be safe for concurrent use.
type Analyzer interface {
	// Lemmatize returns the lemma of token, or an error wrapping
	// ErrUnknownToken if the token cannot be classified.
	Lemmatize(token string) (string, error)
}

// SnowballAnalyzer reduces Russian words to their Snowball stem.
// Tokens without Cyrillic letters are not classified.
type SnowballAnalyzer struct{}

// NewSnowballAnalyzer creates a SnowballAnalyzer.
func NewSnowballAnalyzer() *SnowballAnalyzer {
	return &SnowballAnalyzer{}
}

// Lemmatize implements Analyzer.
func (a *SnowballAnalyzer) Lemmatize(token string) (string, error) {
	if !hasCyrillic(token) {
		return "", fmt.Errorf("%w: %q is not Russian", ErrUnknownToken, token)
	}
	stem, err := snowball.Stem(token, "russian", true)
	if err != nil {
		return "", fmt.Errorf("stem %q: %w", token, err)
	}
	if stem == "" {
		return "", fmt.Errorf("%w: empty stem for %q", ErrUnknownToken, token)
	}
	return stem, nil
}

func hasCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

// DictionaryAnalyzer looks lemmas up in a word form dictionary.
type DictionaryAnalyzer struct {
	lemmaOf map[string]string
}

// NewDictionaryAnalyzer creates an analyzer from lemma groups: every form of
// a group, and the lemma itself, maps to the group's lemma. When a form is
// listed under several lemmas the lexicographically first lemma wins.
func NewDictionaryAnalyzer(groups LemmaGroups) *DictionaryAnalyzer {
	lemmaOf := make(map[string]string)
	set := func(form, lemma string) {
		if prev, ok := lemmaOf[form]; !ok || lemma < prev {
			lemmaOf[form] = lemma
		}
	}
	for lemma, forms := range groups {
		set(lemma, lemma)
		for _, form := range forms {
			set(form, lemma)
		}
	}
	return &DictionaryAnalyzer{lemmaOf: lemmaOf}
}

// ReadDictionary reads a dictionary in lemma output format, one
// "<lemma> <form> <form> ..." line per lemma.
func ReadDictionary(r io.Reader) (*DictionaryAnalyzer, error) {
	groups, err := ParseLemmas(r)
	if err != nil {
		return nil, err
	}
	return NewDictionaryAnalyzer(groups), nil
}

// LoadDictionary reads a dictionary file. See ReadDictionary.
func LoadDictionary(path string) (*DictionaryAnalyzer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()

	d, err := ReadDictionary(f)
	if err != nil {
		return nil, fmt.Errorf("read dictionary %s: %w", path, err)
	}
	return d, nil
}

// Len returns the number of known word forms.
func (d *DictionaryAnalyzer) Len() int {
	return len(d.lemmaOf)
}

// Lemmatize implements Analyzer.
func (d *DictionaryAnalyzer) Lemmatize(token string) (string, error) {
	if lemma, ok := d.lemmaOf[token]; ok {
		return lemma, nil
	}
	return "", fmt.Errorf("%w: %q not in dictionary", ErrUnknownToken, token)
}

// IdentityAnalyzer maps every token to itself.
type IdentityAnalyzer struct{}

// Lemmatize implements Analyzer.
func (IdentityAnalyzer) Lemmatize(token string) (string, error) {
	return token, nil
}

// ChainAnalyzer asks several analyzers in turn and returns the first lemma found.
type ChainAnalyzer []Analyzer

// Lemmatize implements Analyzer. If no analyzer classifies the token, the
// errors of all of them are combined.
func (c ChainAnalyzer) Lemmatize(token string) (string, error) {
	var result *multierror.Error
	for _, a := range c {
		lemma, err := a.Lemmatize(token)
		if err == nil && lemma != "" {
			return lemma, nil
		}
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownToken, token)
}
