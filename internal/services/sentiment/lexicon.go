package sentiment

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"strconv"
	"strings"
)

//go:embed vader_lexicon.txt
var embeddedLexicon string

// Lexicon maps a token to its mean valence in [-4, 4]. Keys are kept as
// written; lookups use the lower-cased token.
type Lexicon map[string]float64

// ParseLexicon reads "token<TAB>valence[<TAB>...]" lines, the layout of the
// VADER lexicon. Blank lines are skipped.
func ParseLexicon(r io.Reader) (Lexicon, error) {
	lex := make(Lexicon)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, "\t")
		if len(parts) < 2 {
			return nil, fmt.Errorf("lexicon line %d: expected token and valence", line)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("lexicon line %d: %w", line, err)
		}
		lex[parts[0]] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	return lex, nil
}

// DefaultLexicon parses the lexicon compiled into the binary.
func DefaultLexicon() (Lexicon, error) {
	return ParseLexicon(strings.NewReader(embeddedLexicon))
}

func (l Lexicon) has(word string) bool {
	_, ok := l[strings.ToLower(word)]
	return ok
}
