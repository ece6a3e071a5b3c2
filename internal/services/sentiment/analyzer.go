package sentiment

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"NewsVol/internal/domain/service"
)

// Analyzer computes VADER compound polarity. It holds no mutable state and is
// safe for concurrent use.
type Analyzer struct {
	lexicon Lexicon
}

var _ service.SentimentScorer = (*Analyzer)(nil)

// NewAnalyzer builds an analyzer over lex. The map must not be modified
// afterwards.
func NewAnalyzer(lex Lexicon) *Analyzer {
	return &Analyzer{lexicon: lex}
}

var (
	defaultOnce     sync.Once
	defaultAnalyzer *Analyzer
	defaultErr      error
)

// Init loads the embedded lexicon into the process-wide analyzer. Call it once
// at startup; later calls return the first result.
func Init() error {
	defaultOnce.Do(func() {
		lex, err := DefaultLexicon()
		if err != nil {
			defaultErr = fmt.Errorf("load sentiment lexicon: %w", err)
			return
		}
		defaultAnalyzer = NewAnalyzer(lex)
	})
	return defaultErr
}

// Default returns the shared analyzer, initialising it on first use.
func Default() *Analyzer {
	if err := Init(); err != nil {
		panic(err)
	}
	return defaultAnalyzer
}

// ScoreOptional treats a nil text as empty.
func (a *Analyzer) ScoreOptional(text *string) float64 {
	if text == nil {
		return 0
	}
	return a.Score(*text)
}

// Score returns the compound polarity of text in [-1, 1], rounded to four
// decimals. Empty text scores 0.
func (a *Analyzer) Score(text string) float64 {
	words := tokenize(text)
	if len(words) == 0 {
		return 0
	}
	capDiff := isCapDiff(words)

	sentiments := make([]float64, len(words))
	for i, w := range words {
		lw := strings.ToLower(w)
		if _, ok := boosters[lw]; ok {
			continue
		}
		if lw == "kind" && i+1 < len(words) && strings.ToLower(words[i+1]) == "of" {
			continue
		}
		sentiments[i] = a.valence(words, i, capDiff)
	}
	applyContrast(words, sentiments)

	sum := 0.0
	for _, s := range sentiments {
		sum += s
	}
	switch {
	case sum > 0:
		sum += punctuationEmphasis(text)
	case sum < 0:
		sum -= punctuationEmphasis(text)
	}
	return normalize(sum)
}

func (a *Analyzer) valence(words []string, i int, capDiff bool) float64 {
	word := words[i]
	v, ok := a.lexicon[strings.ToLower(word)]
	if !ok {
		return 0
	}

	if capDiff && isAllCaps(word) {
		if v > 0 {
			v += capsIncr
		} else {
			v -= capsIncr
		}
	}

	for start := 0; start < 3 && i > start; start++ {
		prev := words[i-(start+1)]
		if a.lexicon.has(prev) {
			continue
		}
		s := boosterScalar(prev, v, capDiff)
		switch start {
		case 1:
			s *= 0.95
		case 2:
			s *= 0.9
		}
		v += s
		v = negationWindow(v, words, start, i)
		if start == 2 {
			v = idiomValence(v, words, i)
		}
	}

	return a.leastCheck(v, words, i)
}

// negationWindow flips v when a negation sits start+1 tokens back. "never so"
// and "never this" intensify instead; a "so" or "this" right before the word
// also intensifies at the widest window. Both are matched case-sensitively.
func negationWindow(v float64, words []string, start, i int) float64 {
	switch start {
	case 0:
		if isNegation(words[i-1]) {
			v *= negationScalar
		}
	case 1:
		if words[i-2] == "never" && (words[i-1] == "so" || words[i-1] == "this") {
			v *= neverScalar
		} else if isNegation(words[i-2]) {
			v *= negationScalar
		}
	case 2:
		if (words[i-3] == "never" && (words[i-2] == "so" || words[i-2] == "this")) ||
			words[i-1] == "so" || words[i-1] == "this" {
			v *= neverScalar
		} else if isNegation(words[i-3]) {
			v *= negationScalar
		}
	}
	return v
}

// leastCheck flips "least <word>" unless it reads "at least" or "very least".
func (a *Analyzer) leastCheck(v float64, words []string, i int) float64 {
	if i == 0 || lowerAt(words, i-1) != "least" || a.lexicon.has(words[i-1]) {
		return v
	}
	if i > 1 {
		if w := lowerAt(words, i-2); w == "at" || w == "very" {
			return v
		}
	}
	return v * negationScalar
}

// applyContrast damps sentiment before the first "but" and amplifies it after.
func applyContrast(words []string, sentiments []float64) {
	bi := -1
	for i, w := range words {
		if strings.ToLower(w) == "but" {
			bi = i
			break
		}
	}
	if bi < 0 {
		return
	}
	for i := range sentiments {
		switch {
		case i < bi:
			sentiments[i] *= 0.5
		case i > bi:
			sentiments[i] *= 1.5
		}
	}
}

func normalize(score float64) float64 {
	n := score / math.Sqrt(score*score+normAlpha)
	switch {
	case n < -1:
		n = -1
	case n > 1:
		n = 1
	}
	r, _ := strconv.ParseFloat(strconv.FormatFloat(n, 'f', 4, 64), 64)
	return r
}

const asciiPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// tokenize splits on whitespace and drops single-rune tokens. A token is
// reduced to its bare word when it is that word plus one of the affixes on
// either side; other punctuation (quotes around a word, emoticons) stays.
func tokenize(text string) []string {
	bare := make(map[string]struct{})
	for _, w := range strings.Fields(stripPunct(text)) {
		if utf8.RuneCountInString(w) > 1 {
			bare[w] = struct{}{}
		}
	}

	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		out = append(out, trimAffix(f, bare))
	}
	return out
}

func trimAffix(tok string, bare map[string]struct{}) string {
	for _, p := range affixes {
		if w, ok := strings.CutSuffix(tok, p); ok {
			if _, hit := bare[w]; hit {
				return w
			}
		}
	}
	for _, p := range affixes {
		if w, ok := strings.CutPrefix(tok, p); ok {
			if _, hit := bare[w]; hit {
				return w
			}
		}
	}
	return tok
}

func stripPunct(text string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(asciiPunct, r) {
			return -1
		}
		return r
	}, text)
}

func isAllCaps(word string) bool {
	cased := false
	for _, r := range word {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// isCapDiff reports whether some, but not all, tokens are all caps.
func isCapDiff(words []string) bool {
	caps := 0
	for _, w := range words {
		if isAllCaps(w) {
			caps++
		}
	}
	return caps > 0 && caps < len(words)
}

func lowerAt(words []string, i int) string { return strings.ToLower(words[i]) }
