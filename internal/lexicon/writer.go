package lexicon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/nao1215/lexcrawl/internal/store"
)

// ErrMalformedLine is returned when a token or lemma line cannot be parsed.
var ErrMalformedLine = errors.New("malformed lexicon line")

// WriteTokens writes tokens one per line, sorted and without duplicates.
func WriteTokens(w io.Writer, tokens []string) error {
	sorted := slices.Compact(slices.Sorted(slices.Values(tokens)))
	bw := bufio.NewWriter(w)
	for _, token := range sorted {
		if _, err := bw.WriteString(token + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteLemmas writes one "<lemma> <form> <form> ..." line per lemma,
// sorted by lemma, with sorted distinct forms. The lemma appears among
// the forms only if it is itself one of them.
func WriteLemmas(w io.Writer, groups LemmaGroups) error {
	bw := bufio.NewWriter(w)
	for _, lemma := range slices.Sorted(maps.Keys(groups)) {
		forms := slices.Compact(slices.Sorted(slices.Values(groups[lemma])))
		line := lemma
		if len(forms) > 0 {
			line += " " + strings.Join(forms, " ")
		}
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteTokensFile atomically replaces path with the token list.
func WriteTokensFile(path string, tokens []string) error {
	return store.WriteFileAtomic(path, func(w io.Writer) error {
		return WriteTokens(w, tokens)
	})
}

// WriteLemmasFile atomically replaces path with the lemma list.
func WriteLemmasFile(path string, groups LemmaGroups) error {
	return store.WriteFileAtomic(path, func(w io.Writer) error {
		return WriteLemmas(w, groups)
	})
}

// ParseTokens reads a token list written by WriteTokens.
func ParseTokens(r io.Reader) ([]string, error) {
	tokens := make([]string, 0)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.ContainsFunc(line, isSpace) {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedLine, lineNo, line)
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

// ParseLemmas reads a lemma list written by WriteLemmas.
func ParseLemmas(r io.Reader) (LemmaGroups, error) {
	groups := make(LemmaGroups)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		lemma := fields[0]
		if _, dup := groups[lemma]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate lemma %q", ErrMalformedLine, lineNo, lemma)
		}
		groups[lemma] = fields[1:]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}
