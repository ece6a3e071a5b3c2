package sentiment

import "strings"

const (
	boostIncr      = 0.293
	boostDecr      = -0.293
	capsIncr       = 0.733
	negationScalar = -0.74
	neverScalar    = 1.25

	exclaimWeight  = 0.292
	maxExclaims    = 4
	questionWeight = 0.18
	questionCap    = 0.96

	normAlpha = 15.0
)

var negations = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"aint", "arent", "cannot", "cant", "couldnt", "darent", "didnt", "doesnt",
		"ain't", "aren't", "can't", "couldn't", "daren't", "didn't", "doesn't",
		"dont", "hadnt", "hasnt", "havent", "isnt", "mightnt", "mustnt", "neither",
		"don't", "hadn't", "hasn't", "haven't", "isn't", "mightn't", "mustn't",
		"neednt", "needn't", "never", "none", "nope", "nor", "not", "nothing", "nowhere",
		"oughtnt", "shant", "shouldnt", "uhuh", "wasnt", "werent",
		"oughtn't", "shan't", "shouldn't", "uh-uh", "wasn't", "weren't",
		"without", "wont", "wouldnt", "won't", "wouldn't", "rarely", "seldom", "despite",
	} {
		negations[w] = struct{}{}
	}
}

var boosters = map[string]float64{
	"absolutely": boostIncr, "amazingly": boostIncr, "awfully": boostIncr,
	"completely": boostIncr, "considerably": boostIncr, "decidedly": boostIncr,
	"deeply": boostIncr, "effing": boostIncr, "enormously": boostIncr,
	"entirely": boostIncr, "especially": boostIncr, "exceptionally": boostIncr,
	"extremely": boostIncr, "fabulously": boostIncr, "flipping": boostIncr,
	"flippin": boostIncr, "fricking": boostIncr, "frickin": boostIncr,
	"frigging": boostIncr, "friggin": boostIncr, "fully": boostIncr,
	"fucking": boostIncr, "greatly": boostIncr, "hella": boostIncr,
	"highly": boostIncr, "hugely": boostIncr, "incredibly": boostIncr,
	"intensely": boostIncr, "majorly": boostIncr, "more": boostIncr,
	"most": boostIncr, "particularly": boostIncr, "purely": boostIncr,
	"quite": boostIncr, "really": boostIncr, "remarkably": boostIncr,
	"so": boostIncr, "substantially": boostIncr, "thoroughly": boostIncr,
	"totally": boostIncr, "tremendously": boostIncr, "uber": boostIncr,
	"unbelievably": boostIncr, "unusually": boostIncr, "utterly": boostIncr,
	"very": boostIncr,

	"almost": boostDecr, "barely": boostDecr, "hardly": boostDecr,
	"just enough": boostDecr, "kind of": boostDecr, "kinda": boostDecr,
	"kindof": boostDecr, "kind-of": boostDecr, "less": boostDecr,
	"little": boostDecr, "marginally": boostDecr, "occasionally": boostDecr,
	"partly": boostDecr, "scarcely": boostDecr, "slightly": boostDecr,
	"somewhat": boostDecr, "sort of": boostDecr, "sorta": boostDecr,
	"sortof": boostDecr, "sort-of": boostDecr,
}

// idioms replace the valence of the word they end on (or start with).
// Sequences are matched against the tokens as written.
var idioms = map[string]float64{
	"the shit": 3, "the bomb": 3, "bad ass": 1.5, "yeah right": -2,
	"cut the mustard": 2, "kiss of death": -1.5, "hand to mouth": -2,
}

// affixes are the punctuation runs stripped from either end of a token.
var affixes = []string{
	".", "!", "?", ",", ";", ":", "-", "'", "\"",
	"!!", "!!!", "??", "???", "?!?", "!?!", "?!?!", "!?!?",
}

func isNegation(word string) bool {
	w := strings.ToLower(word)
	if _, ok := negations[w]; ok {
		return true
	}
	return strings.Contains(w, "n't")
}

// boosterScalar returns the intensity shift a preceding booster word applies
// to valence, including the all-caps emphasis on the booster itself.
func boosterScalar(word string, valence float64, capDiff bool) float64 {
	scalar, ok := boosters[strings.ToLower(word)]
	if !ok {
		return 0
	}
	if valence < 0 {
		scalar = -scalar
	}
	if capDiff && isAllCaps(word) {
		if valence > 0 {
			scalar += capsIncr
		} else {
			scalar -= capsIncr
		}
	}
	return scalar
}

// idiomValence applies idiom overrides around words[i] and the "kind of" /
// "sort of" dampeners three and two tokens back. Requires i >= 3.
func idiomValence(v float64, words []string, i int) float64 {
	oneZero := words[i-1] + " " + words[i]
	twoOneZero := words[i-2] + " " + words[i-1] + " " + words[i]
	twoOne := words[i-2] + " " + words[i-1]
	threeTwoOne := words[i-3] + " " + words[i-2] + " " + words[i-1]
	threeTwo := words[i-3] + " " + words[i-2]

	for _, seq := range []string{oneZero, twoOneZero, twoOne, threeTwoOne, threeTwo} {
		if iv, ok := idioms[seq]; ok {
			v = iv
			break
		}
	}
	if len(words)-1 > i {
		if iv, ok := idioms[words[i]+" "+words[i+1]]; ok {
			v = iv
		}
	}
	if len(words)-1 > i+1 {
		if iv, ok := idioms[words[i]+" "+words[i+1]+" "+words[i+2]]; ok {
			v = iv
		}
	}

	_, tt := boosters[threeTwo]
	_, to := boosters[twoOne]
	if tt || to {
		v += boostDecr
	}
	return v
}

// punctuationEmphasis is the amplifier added in the direction of the sum.
func punctuationEmphasis(text string) float64 {
	ep := strings.Count(text, "!")
	if ep > maxExclaims {
		ep = maxExclaims
	}
	amp := float64(ep) * exclaimWeight

	qm := strings.Count(text, "?")
	if qm > 1 {
		if qm <= 3 {
			amp += float64(qm) * questionWeight
		} else {
			amp += questionCap
		}
	}
	return amp
}
