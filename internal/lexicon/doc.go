// Package lexicon builds the lexical index of a crawl: the sorted set of
// distinct tokens and the grouping of tokens by lemma.
//
// The Tokenizer turns page text into a lazy sequence of case-folded words.
// An Aggregator collects tokens into a token set and lemma groups, asking an
// Analyzer for each new token's lemma. Tokens the analyzer cannot classify
// become their own lemma, so every token belongs to exactly one group.
// The Indexer runs both over the page store and writes tokens.txt and
// lemmas.txt.
package lexicon
