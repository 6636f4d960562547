package tokenize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// A token is either a run of word characters or a run of characters that
// are neither word characters nor whitespace.
var splitter = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+|[^\s\p{L}\p{M}\p{N}_]+`)

// digraphs spell out umlauts the way they are commonly typed without them.
var digraphs = strings.NewReplacer(
	"ä", "ae",
	"ö", "oe",
	"ü", "ue",
	"å", "aa",
	"ß", "ss",
)

const digraphRunes = "äöüåß"

// Letters that carry no combining mark under NFKD and therefore survive
// diacritic stripping.
var ligatures = strings.NewReplacer(
	"æ", "ae",
	"œ", "oe",
	"ß", "ss",
	"þ", "th",
)

func foldLetter(r rune) rune {
	switch r {
	case 'ø':
		return 'o'
	case 'ł':
		return 'l'
	case 'đ', 'ð':
		return 'd'
	case 'ı':
		return 'i'
	case 'ħ':
		return 'h'
	}
	return r
}

// Tokenizer turns file names and search queries into normalized word tokens.
// The same tokenizer must be used for indexing and querying.
type Tokenizer struct{}

// New returns a Tokenizer.
func New() *Tokenizer {
	return &Tokenizer{}
}

var defaultTokenizer = New()

// Tokenize tokenizes text with the default tokenizer.
func Tokenize(text string) []string {
	return defaultTokenizer.Tokenize(text)
}

// Tokenize returns the set of tokens for text as a sorted slice without
// duplicates. Besides the lowercased tokens themselves the set contains
// their ASCII transliteration and their umlaut digraph spelling.
func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	lowered := cases.Lower(language.Und).String(text)
	set := make(map[string]struct{})
	add := func(s string) {
		for _, tok := range splitter.FindAllString(s, -1) {
			set[tok] = struct{}{}
		}
	}

	for _, tok := range splitter.FindAllString(lowered, -1) {
		set[tok] = struct{}{}
		add(transliterate(tok))
		if strings.ContainsAny(tok, digraphRunes) {
			spelled := digraphs.Replace(tok)
			add(spelled)
			add(transliterate(spelled))
		}
	}

	tokens := make([]string, 0, len(set))
	for tok := range set {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

// transliterate strips diacritics and folds a few letters to their closest
// ASCII spelling. It is best effort: on failure the input is returned as is.
func transliterate(s string) string {
	folder := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(foldLetter),
		norm.NFC,
	)
	out, _, err := transform.String(folder, s)
	if err != nil {
		return s
	}
	return ligatures.Replace(out)
}
