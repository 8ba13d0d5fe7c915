package lexicon

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// StopWords is a set of case-folded tokens excluded from the index.
// The nil set contains nothing.
type StopWords map[string]struct{}

// Contains reports whether token is a stop word.
func (s StopWords) Contains(token string) bool {
	_, ok := s[token]
	return ok
}

// NewStopWords builds a set from words, normalizing them like tokens.
func NewStopWords(words ...string) StopWords {
	caser := cases.Fold()
	s := make(StopWords, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		s[norm.NFC.String(caser.String(norm.NFC.String(w)))] = struct{}{}
	}
	return s
}

// LoadStopWords reads a stop word file with one word per line.
// Blank lines and lines starting with "#" are ignored.
func LoadStopWords(path string) (StopWords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stop words: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stop words: %w", err)
	}
	return NewStopWords(words...), nil
}

// RussianStopWords returns the built-in list of Russian function words:
// pronouns, prepositions, conjunctions, particles and linking verbs.
func RussianStopWords() StopWords {
	return NewStopWords(russianFunctionWords...)
}

var russianFunctionWords = []string{
	// personal pronouns
	"я", "ты", "он", "она", "оно", "мы", "вы", "они",
	"мне", "мной", "тебе", "тебя", "его", "её", "ее", "их",
	"нас", "нам", "вас", "вам", "им", "ему", "ей",
	// reflexive and possessive pronouns
	"себя", "себе", "собой", "свой", "своя", "своё", "свои",
	"сам", "сама", "само", "сами",
	// demonstrative and determinative pronouns
	"этот", "эта", "это", "эти", "тот", "та", "те", "то",
	"весь", "вся", "все", "всё", "всех", "всем",
	"такой", "такая", "такое", "такие",
	"каждый", "каждая", "каждое",
	"один", "одна", "одно", "одни",
	// interrogative and relative pronouns
	"кто", "что", "какой", "какая", "какое", "какие",
	"который", "которая", "которое", "которые",
	// prepositions
	"в", "на", "с", "со", "к", "по", "из", "у", "о", "об", "от", "до",
	"за", "для", "при", "без", "над", "под", "про", "через",
	"перед", "после", "около", "вокруг", "среди", "ради", "вдоль", "между",
	// conjunctions
	"и", "а", "но", "или", "да", "ни", "не", "же", "бы",
	"как", "если", "чтобы", "хотя", "либо", "также",
	"тоже", "однако", "зато", "причём", "притом",
	"когда", "пока", "пусть", "будто", "словно", "точно",
	// particles
	"ли", "ведь", "вот", "вон", "даже", "лишь", "только",
	"уже", "ещё", "еще", "именно", "разве", "неужели",
	// linking verbs
	"быть", "был", "была", "было", "были", "есть",
	"будет", "будут", "будем", "стал", "стала",
	"является", "являются",
	// adverbs
	"так", "там", "тут", "здесь", "где", "куда", "откуда",
	"тогда", "потом", "затем", "поэтому", "потому",
	"очень", "более", "менее", "надо", "нужно", "можно",
	// other
	"ну", "нет", "может", "могут",
	"другой", "другая", "другое", "другие",
}
