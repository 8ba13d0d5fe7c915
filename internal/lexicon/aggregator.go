package lexicon

import (
	"iter"
	"log/slog"
	"maps"
	"slices"
)

// LemmaGroups maps a lemma to its distinct word forms.
type LemmaGroups map[string][]string

// Aggregator owns a token set and the lemma groups built from it.
//
// Each token is lemmatized once, when it is first added; later additions
// of the same token are no-ops. This keeps every token in exactly one
// lemma group. An Aggregator is not safe for concurrent use: aggregate
// pages separately and Merge the results.
type Aggregator struct {
	analyzer Analyzer
	logger   *slog.Logger

	// lemmaOf holds the token set and each token's lemma.
	lemmaOf map[string]string

	// groups holds the forms of each lemma.
	groups map[string]map[string]struct{}

	// fallback holds tokens the analyzer could not classify.
	fallback map[string]struct{}
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithAggregatorLogger sets the logger that records unclassified tokens.
func WithAggregatorLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// NewAggregator creates an empty Aggregator using analyzer.
func NewAggregator(analyzer Analyzer, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		analyzer: analyzer,
		logger:   slog.Default(),
		lemmaOf:  make(map[string]string),
		groups:   make(map[string]map[string]struct{}),
		fallback: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Add adds token to the token set and to the group of its lemma.
// If the analyzer fails or returns an empty lemma, the token is its own lemma.
func (a *Aggregator) Add(token string) {
	if token == "" {
		return
	}
	if _, ok := a.lemmaOf[token]; ok {
		return
	}

	lemma, err := a.analyzer.Lemmatize(token)
	selfLemma := err != nil || lemma == ""
	if selfLemma {
		a.logger.Debug("token kept as its own lemma", "token", token, "error", err)
		lemma = token
	}
	a.insert(token, lemma, selfLemma)
}

// AddAll adds every token of seq.
func (a *Aggregator) AddAll(seq iter.Seq[string]) {
	for token := range seq {
		a.Add(token)
	}
}

func (a *Aggregator) insert(token, lemma string, selfLemma bool) {
	a.lemmaOf[token] = lemma
	forms, ok := a.groups[lemma]
	if !ok {
		forms = make(map[string]struct{})
		a.groups[lemma] = forms
	}
	forms[token] = struct{}{}
	if selfLemma {
		a.fallback[token] = struct{}{}
	}
}

// Merge folds other into a. Tokens a already knows keep their lemma;
// new tokens take the lemma other assigned. Merging pages in a fixed
// order therefore gives the same result as adding their tokens in that order.
func (a *Aggregator) Merge(other *Aggregator) {
	for _, token := range slices.Sorted(maps.Keys(other.lemmaOf)) {
		if _, ok := a.lemmaOf[token]; ok {
			continue
		}
		_, selfLemma := other.fallback[token]
		a.insert(token, other.lemmaOf[token], selfLemma)
	}
}

// Contains reports whether token is in the token set.
func (a *Aggregator) Contains(token string) bool {
	_, ok := a.lemmaOf[token]
	return ok
}

// LemmaOf returns the lemma token was grouped under.
func (a *Aggregator) LemmaOf(token string) (string, bool) {
	lemma, ok := a.lemmaOf[token]
	return lemma, ok
}

// TokenCount returns the size of the token set.
func (a *Aggregator) TokenCount() int {
	return len(a.lemmaOf)
}

// LemmaCount returns the number of lemma groups.
func (a *Aggregator) LemmaCount() int {
	return len(a.groups)
}

// SelfLemmaCount returns how many tokens the analyzer could not classify.
func (a *Aggregator) SelfLemmaCount() int {
	return len(a.fallback)
}

// Tokens returns the token set sorted lexicographically.
func (a *Aggregator) Tokens() []string {
	return slices.Sorted(maps.Keys(a.lemmaOf))
}

// Groups returns a copy of the lemma groups with sorted forms.
func (a *Aggregator) Groups() LemmaGroups {
	groups := make(LemmaGroups, len(a.groups))
	for lemma, forms := range a.groups {
		groups[lemma] = slices.Sorted(maps.Keys(forms))
	}
	return groups
}
