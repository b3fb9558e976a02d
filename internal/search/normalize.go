package search

import (
	"bufio"
	_ "embed"
	"io"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed vocabulary.tsv
var defaultVocabulary string

// DefaultVocabulary returns the bundled list of common medication names.
func DefaultVocabulary() []Entry {
	entries, _ := ParseVocabulary(strings.NewReader(defaultVocabulary))
	return entries
}

// ParseVocabulary reads one entry per line as "code<TAB>name". Blank lines
// and lines starting with '#' are skipped; a line without a tab is a name
// with no code.
func ParseVocabulary(r io.Reader) ([]Entry, error) {
	var out []Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if t := strings.TrimSpace(line); t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		code, name, ok := strings.Cut(line, "\t")
		if !ok {
			code, name = "", line
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, Entry{Name: name, Code: strings.TrimSpace(code)})
	}
	return out, sc.Err()
}

var folder = cases.Fold()

// Fold lowercases s, strips diacritics and collapses whitespace, so that
// "  Paracétamol  500 " and "paracetamol 500" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(folder.String(out)), " ")
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

func tokenize(folded string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(folded, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
