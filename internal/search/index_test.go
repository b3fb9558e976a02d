package search

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

// ---------- tiny io.Reader that always errors ----------
type boomReader struct{}

func (boomReader) Read(_ []byte) (int, error) { return 0, errors.New("boom") }

// ---------- Options + defaultConfig ----------
func TestOptionsAndDefaults(t *testing.T) {
	def := defaultConfig()
	if def.minQueryRunes != 3 || def.stopwords != nil || def.maxEntries != 0 {
		t.Fatalf("defaultConfig unexpected: %#v", def)
	}

	cfg := def
	WithMinQueryRunes(1)(&cfg)
	if cfg.minQueryRunes != 1 {
		t.Fatalf("WithMinQueryRunes failed: %d", cfg.minQueryRunes)
	}
	WithMinQueryRunes(-5)(&cfg) // no-op
	if cfg.minQueryRunes != 1 {
		t.Fatalf("negative minQueryRunes should be ignored")
	}

	WithStopwords([]string{"  De ", "", "MG"})(&cfg)
	if _, ok := cfg.stopwords["de"]; !ok {
		t.Fatalf("WithStopwords failed (missing 'de'): %#v", cfg.stopwords)
	}
	if _, ok := cfg.stopwords["mg"]; !ok {
		t.Fatalf("WithStopwords failed (missing 'mg'): %#v", cfg.stopwords)
	}
	cfg2 := def
	WithStopwords(nil)(&cfg2)
	if cfg2.stopwords != nil {
		t.Fatalf("empty stopwords should remain nil")
	}

	WithMaxEntries(2)(&cfg)
	if cfg.maxEntries != 2 {
		t.Fatalf("WithMaxEntries failed: %d", cfg.maxEntries)
	}
	WithMaxEntries(0)(&cfg) // no-op
	if cfg.maxEntries != 2 {
		t.Fatalf("non-positive maxEntries should be ignored")
	}
}

func TestFold(t *testing.T) {
	cases := map[string]string{
		"  Paracétamol  500 ": "paracetamol 500",
		"IBUPROFÈNO":          "ibuprofeno",
		"Insulina NPH":        "insulina nph",
		"":                    "",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Fatalf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseVocabulary_AndReaderError(t *testing.T) {
	in := "# comment\n\n1191\taspirin\nparacetamol\n42\t   \n"
	got, err := ParseVocabulary(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseVocabulary: %v", err)
	}
	if len(got) != 2 || got[0] != (Entry{Name: "aspirin", Code: "1191"}) || got[1] != (Entry{Name: "paracetamol"}) {
		t.Fatalf("unexpected entries: %#v", got)
	}

	idx, err := NewIndexFromReader(boomReader{})
	if err == nil {
		t.Fatalf("expected reader error")
	}
	if idx == nil || idx.Len() != 0 {
		t.Fatalf("expected empty non-nil index on error")
	}
}

func TestDefaultVocabulary(t *testing.T) {
	v := DefaultVocabulary()
	if len(v) < 10 {
		t.Fatalf("expected bundled vocabulary, got %d entries", len(v))
	}
	for _, e := range v {
		if e.Name == "" || e.Code == "" {
			t.Fatalf("bundled entries need name and code: %#v", e)
		}
	}
}

func TestTopK_RankingAndFolding(t *testing.T) {
	idx := NewIndex([]Entry{
		{Name: "aspirin", Code: "1191"},
		{Name: "aspirin 81 MG Oral Tablet", Code: "243670"},
		{Name: "Acetaminophen", Code: "161"},
		{Name: "Paracétamol", Code: "p1"},
	})

	res := idx.TopK("asp", 10)
	if len(res) != 2 {
		t.Fatalf("expected 2 results for 'asp', got %#v", res)
	}
	// Same prefix score; the shorter name wins the tie.
	if res[0].Code != "1191" || res[1].Code != "243670" {
		t.Fatalf("unexpected order: %#v", res)
	}

	exact := idx.TopK("ASPIRIN", 10)
	if exact[0].Code != "1191" || exact[0].Score <= exact[1].Score {
		t.Fatalf("exact match should rank first with a higher score: %#v", exact)
	}

	acc := idx.TopK("paracetamol", 1)
	if len(acc) != 1 || acc[0].Code != "p1" {
		t.Fatalf("accent-insensitive match failed: %#v", acc)
	}

	// Every query token prefixes a name token.
	tab := idx.TopK("oral asp", 5)
	if len(tab) == 0 || tab[0].Code != "243670" {
		t.Fatalf("token prefix match failed: %#v", tab)
	}
}

func TestTopK_EdgeCases(t *testing.T) {
	idx := NewIndex([]Entry{{Name: "aspirin", Code: "1191"}})
	if r := idx.TopK("as", 5); r != nil {
		t.Fatalf("queries shorter than 3 runes return nil, got %#v", r)
	}
	if r := idx.TopK("   ", 5); r != nil {
		t.Fatalf("blank query returns nil")
	}
	if r := idx.TopK("zzz", 5); r != nil {
		t.Fatalf("no match returns nil, got %#v", r)
	}
	if r := NewIndex(nil).TopK("asp", 5); r != nil {
		t.Fatalf("empty index returns nil")
	}
	if r := idx.TopK("asp", 0); len(r) != 1 {
		t.Fatalf("k<=0 falls back to default, got %d", len(r))
	}
	short := NewIndex([]Entry{{Name: "AAS", Code: "1"}}, WithMinQueryRunes(1))
	if r := short.TopK("a", 5); len(r) != 1 {
		t.Fatalf("WithMinQueryRunes(1) should answer 'a'")
	}
}

func TestAdd_DedupAndCap(t *testing.T) {
	idx := NewIndex(nil, WithMaxEntries(3))
	idx.Add(
		Entry{Name: "aspirin", Code: "1191"},
		Entry{Name: "Aspirin (dup code)", Code: "1191"},
		Entry{Name: "  ", Code: "x"},
		Entry{Name: "Paracetamol"},
		Entry{Name: "paracétamol"}, // same folded name, no code
	)
	if idx.Len() != 2 {
		t.Fatalf("expected 2 entries after dedup, got %d", idx.Len())
	}
	idx.Add(Entry{Name: "metformin", Code: "6809"}, Entry{Name: "enalapril", Code: "3827"})
	if idx.Len() != 3 {
		t.Fatalf("expected cap of 3, got %d", idx.Len())
	}
}

func TestStopwords_IgnoredInMatching(t *testing.T) {
	idx := NewIndex([]Entry{{Name: "Sulfato de Salbutamol", Code: "s"}}, WithStopwords([]string{"de"}))
	if r := idx.TopK("de", 5); r != nil {
		t.Fatalf("stopword-only query should not match")
	}
	if r := idx.TopK("salbu", 5); len(r) != 1 {
		t.Fatalf("expected match for salbu")
	}
}

func TestIndex_ConcurrentAddAndQuery(t *testing.T) {
	idx := NewIndex(DefaultVocabulary())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			idx.Add(Entry{Name: "med" + strings.Repeat("x", i+1), Code: strings.Repeat("9", i+1)})
		}(i)
		go func() {
			defer wg.Done()
			_ = idx.TopK("met", 5)
		}()
	}
	wg.Wait()
	if idx.Len() != len(DefaultVocabulary())+8 {
		t.Fatalf("unexpected size %d", idx.Len())
	}
}
