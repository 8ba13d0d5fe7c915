package lexicon

import (
	"bytes"
	"fmt"
	"slices"
	"testing"
)

// mapAnalyzer lemmatizes with a fixed table and fails for unknown tokens.
type mapAnalyzer map[string]string

func (m mapAnalyzer) Lemmatize(token string) (string, error) {
	lemma, ok := m[token]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	return lemma, nil
}

// flakyAnalyzer returns a different lemma on every call.
type flakyAnalyzer struct {
	calls int
}

func (f *flakyAnalyzer) Lemmatize(token string) (string, error) {
	f.calls++
	return fmt.Sprintf("%s-%d", token, f.calls), nil
}

var catForms = mapAnalyzer{"кот": "кот", "коту": "кот", "котом": "кот"}

// TestAggregator tests token set and lemma group maintenance.
func TestAggregator(t *testing.T) {
	t.Parallel()

	t.Run("groups forms under their lemma", func(t *testing.T) {
		t.Parallel()

		agg := NewAggregator(catForms)
		agg.AddAll(NewTokenizer().Tokens("Кот коту котом"))

		var buf bytes.Buffer
		if err := WriteLemmas(&buf, agg.Groups()); err != nil {
			t.Fatalf("WriteLemmas failed: %v", err)
		}
		if buf.String() != "кот кот котом коту\n" {
			t.Errorf("unexpected lemma output %q", buf.String())
		}
	})

	t.Run("lemma is listed as a form only when observed", func(t *testing.T) {
		t.Parallel()

		agg := NewAggregator(catForms)
		agg.AddAll(NewTokenizer().Tokens("коту котом"))

		var buf bytes.Buffer
		if err := WriteLemmas(&buf, agg.Groups()); err != nil {
			t.Fatalf("WriteLemmas failed: %v", err)
		}
		if buf.String() != "кот котом коту\n" {
			t.Errorf("unexpected lemma output %q", buf.String())
		}
		if agg.Contains("кот") {
			t.Error("unobserved lemma must not enter the token set")
		}
	})

	t.Run("unclassified tokens become their own lemma", func(t *testing.T) {
		t.Parallel()

		agg := NewAggregator(catForms)
		agg.Add("коту")
		agg.Add("xyzzy")

		if lemma, _ := agg.LemmaOf("xyzzy"); lemma != "xyzzy" {
			t.Errorf("expected self lemma, got %q", lemma)
		}
		if !agg.Contains("xyzzy") {
			t.Error("unclassified token was lost from the token set")
		}
		if agg.SelfLemmaCount() != 1 {
			t.Errorf("expected 1 self lemma, got %d", agg.SelfLemmaCount())
		}
	})

	t.Run("empty lemma falls back to the token", func(t *testing.T) {
		t.Parallel()

		agg := NewAggregator(mapAnalyzer{"пусто": ""})
		agg.Add("пусто")
		if lemma, _ := agg.LemmaOf("пусто"); lemma != "пусто" {
			t.Errorf("expected self lemma, got %q", lemma)
		}
	})

	t.Run("adding a token again is a no-op", func(t *testing.T) {
		t.Parallel()

		flaky := &flakyAnalyzer{}
		agg := NewAggregator(flaky)
		for range 3 {
			agg.Add("суп")
		}
		if agg.TokenCount() != 1 || agg.LemmaCount() != 1 {
			t.Errorf("expected 1 token in 1 group, got %d tokens, %d groups", agg.TokenCount(), agg.LemmaCount())
		}
		if flaky.calls != 1 {
			t.Errorf("expected the analyzer to be called once, got %d", flaky.calls)
		}
	})

	t.Run("every token is in exactly one group", func(t *testing.T) {
		t.Parallel()

		agg := NewAggregator(&flakyAnalyzer{})
		agg.AddAll(NewTokenizer().Tokens("щи да каша пища наша щи каша"))

		membership := map[string]int{}
		for _, forms := range agg.Groups() {
			for _, form := range forms {
				membership[form]++
			}
		}
		for _, token := range agg.Tokens() {
			if membership[token] != 1 {
				t.Errorf("token %q is in %d groups", token, membership[token])
			}
		}
		if len(membership) != agg.TokenCount() {
			t.Errorf("groups contain %d forms, token set has %d", len(membership), agg.TokenCount())
		}
	})

	t.Run("merge keeps the first lemma of a token", func(t *testing.T) {
		t.Parallel()

		first := NewAggregator(mapAnalyzer{"стали": "сталь"})
		first.Add("стали")

		second := NewAggregator(mapAnalyzer{"стали": "стать", "стал": "стать"})
		second.Add("стали")
		second.Add("стал")
		second.Add("???")

		first.Merge(second)

		if lemma, _ := first.LemmaOf("стали"); lemma != "сталь" {
			t.Errorf("expected сталь, got %q", lemma)
		}
		if lemma, _ := first.LemmaOf("стал"); lemma != "стать" {
			t.Errorf("expected стать, got %q", lemma)
		}
		if !slices.Equal(first.Tokens(), []string{"???", "стал", "стали"}) {
			t.Errorf("unexpected tokens %q", first.Tokens())
		}
		if first.SelfLemmaCount() != 1 {
			t.Errorf("self lemma count should carry over, got %d", first.SelfLemmaCount())
		}
		if got := first.Groups()["стать"]; !slices.Equal(got, []string{"стал"}) {
			t.Errorf("unexpected стать forms %q", got)
		}
	})

	t.Run("merge order does not change output for a deterministic analyzer", func(t *testing.T) {
		t.Parallel()

		pages := []string{"кот коту", "котом суп", "суп кот"}
		build := func(order []int) string {
			global := NewAggregator(catForms)
			for _, i := range order {
				page := NewAggregator(catForms)
				page.AddAll(NewTokenizer().Tokens(pages[i]))
				global.Merge(page)
			}
			var buf bytes.Buffer
			if err := WriteLemmas(&buf, global.Groups()); err != nil {
				t.Fatal(err)
			}
			return buf.String()
		}

		if a, b := build([]int{0, 1, 2}), build([]int{2, 1, 0}); a != b {
			t.Errorf("output depends on order:\n%s\nvs\n%s", a, b)
		}
	})
}
