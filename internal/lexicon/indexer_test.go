package lexicon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/nao1215/lexcrawl/internal/model"
	"github.com/nao1215/lexcrawl/internal/store"
)

// writeStore creates a page store holding the given HTML documents.
func writeStore(t *testing.T, docs ...string) (pagesDir, indexPath string) {
	t.Helper()

	out := t.TempDir()
	pagesDir = filepath.Join(out, "pages")
	indexPath = filepath.Join(out, "index.txt")
	s, err := store.Create(pagesDir, indexPath)
	if err != nil {
		t.Fatalf("store.Create failed: %v", err)
	}
	defer s.Close()

	for i, doc := range docs {
		page := &model.Page{Seq: i + 1, URL: "https://example.test/" + string(rune('a'+i)), Content: []byte(doc)}
		if err := s.Save(page); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	return pagesDir, indexPath
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// TestIndexerReusedOutputDir tests indexing after a second crawl into the
// same directory with a wider page numbering.
func TestIndexerReusedOutputDir(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	pagesDir := filepath.Join(out, "pages")
	indexPath := filepath.Join(out, "index.txt")
	for _, run := range []struct {
		pageCap int
		doc     string
	}{
		{100, "<html><body>старый</body></html>"},
		{1000, "<html><body>новый</body></html>"},
	} {
		s, err := store.Create(pagesDir, indexPath, store.WithSeqWidth(store.SeqWidth(run.pageCap)))
		if err != nil {
			t.Fatalf("store.Create failed: %v", err)
		}
		if err := s.Save(&model.Page{Seq: 1, URL: "https://example.test/", Content: []byte(run.doc)}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	agg, pages, err := NewIndexer(pagesDir, indexPath, WithAnalyzer(IdentityAnalyzer{})).Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if pages != 1 || !slices.Equal(agg.Tokens(), []string{"новый"}) {
		t.Errorf("expected only the second crawl's tokens, got %q from %d pages", agg.Tokens(), pages)
	}
}

// TestIndexer tests building the lexical index from a page store.
func TestIndexer(t *testing.T) {
	t.Parallel()

	docs := []string{
		`<html><head><title>Кот</title><script>var кошка = 1;</script></head>
		<body><nav>Меню</nav><p>Кот и коту.</p><footer>Подвал</footer></body></html>`,
		`<html><body><p>Котом суп!</p></body></html>`,
		`<html><body><p>Суп, суп.</p></body></html>`,
	}
	analyzer := mapAnalyzer{"кот": "кот", "коту": "кот", "котом": "кот", "суп": "суп"}

	t.Run("writes merged tokens and lemmas", func(t *testing.T) {
		t.Parallel()

		pagesDir, indexPath := writeStore(t, docs...)
		out := t.TempDir()
		tokensPath := filepath.Join(out, "tokens.txt")
		lemmasPath := filepath.Join(out, "lemmas.txt")

		ix := NewIndexer(pagesDir, indexPath, WithAnalyzer(analyzer), WithIndexWorkers(2))
		summary, err := ix.Run(context.Background(), tokensPath, lemmasPath)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if got := readFile(t, tokensPath); got != "кот\nкотом\nкоту\nсуп\n" {
			t.Errorf("unexpected tokens:\n%s", got)
		}
		if got := readFile(t, lemmasPath); got != "кот кот котом коту\nсуп суп\n" {
			t.Errorf("unexpected lemmas:\n%s", got)
		}
		if summary.Pages != 3 || summary.Tokens != 4 || summary.Lemmas != 2 || summary.SelfLemmas != 0 {
			t.Errorf("unexpected summary: %+v", summary)
		}
	})

	t.Run("is deterministic across runs and worker counts", func(t *testing.T) {
		t.Parallel()

		pagesDir, indexPath := writeStore(t, docs...)
		var outputs []string
		for _, workers := range []int{1, 3} {
			out := t.TempDir()
			ix := NewIndexer(pagesDir, indexPath, WithAnalyzer(NewSnowballAnalyzer()), WithIndexWorkers(workers))
			if _, err := ix.Run(context.Background(), filepath.Join(out, "t.txt"), filepath.Join(out, "l.txt")); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			outputs = append(outputs, readFile(t, filepath.Join(out, "t.txt"))+readFile(t, filepath.Join(out, "l.txt")))
		}
		if outputs[0] != outputs[1] {
			t.Errorf("outputs differ:\n%s\nvs\n%s", outputs[0], outputs[1])
		}
	})

	t.Run("writes per-page files", func(t *testing.T) {
		t.Parallel()

		pagesDir, indexPath := writeStore(t, docs...)
		out := t.TempDir()
		ix := NewIndexer(pagesDir, indexPath, WithAnalyzer(analyzer), WithPerPageOutput(out))
		if _, err := ix.Run(context.Background(), filepath.Join(out, "tokens.txt"), filepath.Join(out, "lemmas.txt")); err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if got := readFile(t, filepath.Join(out, "tokens", "002_tokens.txt")); got != "котом\nсуп\n" {
			t.Errorf("unexpected page tokens %q", got)
		}
		if got := readFile(t, filepath.Join(out, "lemmas", "001_lemmas.txt")); got != "кот кот коту\n" {
			t.Errorf("unexpected page lemmas %q", got)
		}
	})

	t.Run("unreadable page is fatal", func(t *testing.T) {
		t.Parallel()

		pagesDir, indexPath := writeStore(t, docs...)
		if err := os.Remove(filepath.Join(pagesDir, "002.html")); err != nil {
			t.Fatal(err)
		}
		out := t.TempDir()
		_, err := NewIndexer(pagesDir, indexPath).Run(context.Background(), filepath.Join(out, "t.txt"), filepath.Join(out, "l.txt"))
		if !errors.Is(err, ErrPageRead) {
			t.Errorf("expected ErrPageRead, got %v", err)
		}
		if _, statErr := os.Stat(filepath.Join(out, "t.txt")); !os.IsNotExist(statErr) {
			t.Error("no output should be written after a fatal error")
		}
	})

	t.Run("missing page index is fatal", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		_, err := NewIndexer(dir, filepath.Join(dir, "index.txt")).Run(context.Background(), filepath.Join(dir, "t"), filepath.Join(dir, "l"))
		if !errors.Is(err, ErrPageRead) {
			t.Errorf("expected ErrPageRead, got %v", err)
		}
	})

	t.Run("empty store produces empty outputs", func(t *testing.T) {
		t.Parallel()

		pagesDir, indexPath := writeStore(t)
		out := t.TempDir()
		summary, err := NewIndexer(pagesDir, indexPath).Run(context.Background(), filepath.Join(out, "t.txt"), filepath.Join(out, "l.txt"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if summary.Pages != 0 || readFile(t, filepath.Join(out, "t.txt")) != "" {
			t.Errorf("expected empty index, got %+v", summary)
		}
	})

	t.Run("cancelled context stops indexing", func(t *testing.T) {
		t.Parallel()

		pagesDir, indexPath := writeStore(t, docs...)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		out := t.TempDir()
		_, err := NewIndexer(pagesDir, indexPath).Run(ctx, filepath.Join(out, "t.txt"), filepath.Join(out, "l.txt"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
