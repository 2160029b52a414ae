// Package transliteration provides a processor that reduces text to ASCII
// so that accented and unaccented spellings match.
package transliteration

import (
	"strings"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/processors/fieldproc"
)

// ID is the processor id.
const ID = "transliteration"

// DefaultCacheSize is the number of transliterated strings kept in memory.
const DefaultCacheSize = 4096

// letters that do not decompose into a base letter plus combining marks.
var special = map[rune]string{
	'ß': "ss", 'ẞ': "SS",
	'æ': "ae", 'Æ': "AE",
	'ø': "o", 'Ø': "O",
	'œ': "oe", 'Œ': "OE",
	'ł': "l", 'Ł': "L",
	'đ': "d", 'Đ': "D",
	'ð': "d", 'Ð': "D",
	'þ': "th", 'Þ': "TH",
	'ı': "i",
}

// Processor transliterates string values of the processed fields.
// Non-string values are never touched.
type Processor struct {
	*fieldproc.Base

	cache *lru.Cache[string, string]
}

// New creates a transliteration processor. Settings:
//
//	fields      fields to process (default: all string and fulltext fields)
//	cache_size  number of cached results (default DefaultCacheSize)
func New(ctx driven.ProcessorContext, settings map[string]any) (*Processor, error) {
	size := fieldproc.Int(settings, "cache_size", DefaultCacheSize)
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}

	p := &Processor{cache: cache}
	p.Base = fieldproc.NewBase(
		fieldproc.NewPlugin(ID, "Transliteration",
			"Makes searches insensitive to accents and other non-ASCII characters.",
			map[domain.Stage]int{
				domain.StagePreprocessIndex: -20,
				domain.StagePreprocessQuery: -20,
			}),
		settings, ctx.Fields, p.process,
		domain.TypeText, domain.TypeTokenizedText, domain.TypeString)
	return p, nil
}

func (p *Processor) process(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if cached, ok := p.cache.Get(s); ok {
		return cached
	}
	out := Transliterate(s)
	p.cache.Add(s, out)
	return out
}

// Transliterate strips combining marks and replaces letters without a
// decomposition. Characters with no ASCII rendering are kept.
func Transliterate(s string) string {
	if isASCII(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if rep, ok := special[r]; ok {
			b.WriteString(rep)
			continue
		}
		b.WriteRune(r)
	}

	// transform.Chain keeps state, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, b.String())
	if err != nil {
		return b.String()
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
