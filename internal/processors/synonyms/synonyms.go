// Package synonyms provides a processor that expands words into their
// synonyms in fulltext values and search keys.
package synonyms

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/processors/fieldproc"
)

// ID is the processor id.
const ID = "synonyms"

// ExtraKey is the result set extra holding the expansions applied to the keys.
const ExtraKey = "synonyms"

// Defaults are used when the settings configure no synonyms at all.
func Defaults() map[string][]string {
	return map[string][]string{
		"xs":  {"extra small"},
		"s":   {"small"},
		"m":   {"medium"},
		"l":   {"large"},
		"xl":  {"extra large"},
		"xxl": {"super extra large"},
	}
}

type rule struct {
	parent   string
	children []string
	with     string
}

// matches returns the non-overlapping whole-word occurrences of the parent
// in s as [start, end) byte offsets. Word characters are Unicode letters,
// digits and the underscore.
func (r rule) matches(s string) [][2]int {
	first, _ := utf8.DecodeRuneInString(r.parent)
	last, _ := utf8.DecodeLastRuneInString(r.parent)
	var out [][2]int
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], r.parent)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(r.parent)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (!isWordRune(first) || start == 0 || !isWordRune(before)) &&
			(!isWordRune(last) || end == len(s) || !isWordRune(after)) {
			out = append(out, [2]int{start, end})
			from = end
			continue
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		from = start + size
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Processor replaces every whole-word occurrence of a parent word with its
// children joined by spaces.
type Processor struct {
	*fieldproc.Base

	rules    []rule
	expanded []string
}

// New creates a synonyms processor. Settings:
//
//	synonyms  map of parent to children, or "parent;child;child" lines
//	file      path of a synonyms file (.yaml/.yml map, otherwise lines)
//	fields    fields to process (default: all fulltext fields)
//
// File synonyms are merged with configured ones, configured entries win.
func New(ctx driven.ProcessorContext, settings map[string]any) (*Processor, error) {
	merged := make(map[string][]string)

	if path := fieldproc.String(settings, "file", ""); path != "" {
		fromFile, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			merged[k] = v
		}
	}

	configured, err := parseSetting(settings["synonyms"])
	if err != nil {
		return nil, err
	}
	if configured == nil && len(merged) == 0 {
		configured = Defaults()
	}
	for k, v := range configured {
		merged[k] = v
	}

	p := &Processor{}
	p.Base = fieldproc.NewBase(
		fieldproc.NewPlugin(ID, "Synonyms",
			"Expands words into their synonyms during indexing and searching.",
			map[domain.Stage]int{
				domain.StagePreprocessIndex:  -5,
				domain.StagePreprocessQuery:  -5,
				domain.StagePostprocessQuery: 0,
			}),
		settings, ctx.Fields, p.expand)
	p.rules = compile(merged)
	return p, nil
}

func compile(synonyms map[string][]string) []rule {
	parents := make([]string, 0, len(synonyms))
	for parent := range synonyms {
		if parent != "" && len(synonyms[parent]) > 0 {
			parents = append(parents, parent)
		}
	}
	// Longer parents first so "xxl" is replaced before "xl".
	sort.Slice(parents, func(i, j int) bool {
		if len(parents[i]) != len(parents[j]) {
			return len(parents[i]) > len(parents[j])
		}
		return parents[i] < parents[j]
	})

	rules := make([]rule, 0, len(parents))
	for _, parent := range parents {
		rules = append(rules, rule{
			parent:   parent,
			children: synonyms[parent],
			with:     strings.Join(synonyms[parent], " "),
		})
	}
	return rules
}

// Synonyms returns the effective synonym map.
func (p *Processor) Synonyms() map[string][]string {
	out := make(map[string][]string, len(p.rules))
	for _, r := range p.rules {
		out[r.parent] = append([]string(nil), r.children...)
	}
	return out
}

// expand is the value transform. Non-string values are returned unchanged.
// Replacement is single pass, so replaced text is never expanded again.
func (p *Processor) expand(value any) any {
	s, ok := value.(string)
	if !ok || len(p.rules) == 0 {
		return value
	}
	return p.replace(s, nil)
}

func (p *Processor) replace(s string, applied map[string]bool) string {
	type span struct {
		start, end int
		with       string
		parent     string
	}
	var spans []span
	taken := make([]bool, len(s))
	for _, r := range p.rules {
	match:
		for _, loc := range r.matches(s) {
			for i := loc[0]; i < loc[1]; i++ {
				if taken[i] {
					continue match
				}
			}
			for i := loc[0]; i < loc[1]; i++ {
				taken[i] = true
			}
			spans = append(spans, span{loc[0], loc[1], r.with, r.parent})
		}
	}
	if len(spans) == 0 {
		return s
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(s[last:sp.start])
		b.WriteString(sp.with)
		last = sp.end
		if applied != nil {
			applied[sp.parent] = true
		}
	}
	b.WriteString(s[last:])
	return b.String()
}

// PreprocessSearchQuery expands the keys and filter values, recording the
// expanded parents for the results.
func (p *Processor) PreprocessSearchQuery(q *domain.Query) {
	p.expanded = nil
	if q.HasKeys() && len(p.rules) > 0 && p.KeysApply(q) {
		applied := make(map[string]bool)
		for i, k := range q.Keys {
			q.Keys[i] = p.replace(k, applied)
		}
		for parent := range applied {
			p.expanded = append(p.expanded, parent)
		}
		sort.Strings(p.expanded)
		keys := q.Keys
		q.Keys = nil
		p.Base.PreprocessSearchQuery(q)
		q.Keys = keys
		return
	}
	p.Base.PreprocessSearchQuery(q)
}

// PostprocessSearchResults reports the expanded words in the result extras.
func (p *Processor) PostprocessSearchResults(rs *domain.ResultSet, _ *domain.Query) {
	if len(p.expanded) == 0 {
		return
	}
	if rs.Extra == nil {
		rs.Extra = make(map[string]any)
	}
	rs.Extra[ExtraKey] = append([]string(nil), p.expanded...)
}

func parseSetting(v any) (map[string][]string, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseLines(strings.NewReader(s))
	case map[string][]string:
		return s, nil
	case map[string]any:
		out := make(map[string][]string, len(s))
		for parent, children := range s {
			switch c := children.(type) {
			case string:
				out[parent] = []string{c}
			case []string:
				out[parent] = c
			case []any:
				for _, child := range c {
					out[parent] = append(out[parent], fmt.Sprint(child))
				}
			default:
				return nil, fmt.Errorf("%w: synonyms for %q", domain.ErrInvalidInput, parent)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: synonyms setting of type %T", domain.ErrInvalidInput, v)
}

// LoadFile reads a synonyms file. Files ending in .yaml or .yml hold a map
// of parent to children, all others hold "parent;child;child" lines.
func LoadFile(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var out map[string][]string
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("parse synonyms file %s: %w", path, err)
		}
		return out, nil
	default:
		return ParseLines(bytes.NewReader(data))
	}
}

// ParseLines parses "parent;child;child" lines. Blank lines and lines
// starting with # are skipped. A non-blank line without children is an error.
func ParseLines(r io.Reader) (map[string][]string, error) {
	out := make(map[string][]string)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.Split(text, ";")
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: synonyms line %d has no children", domain.ErrInvalidInput, line)
		}
		parent := strings.TrimSpace(parts[0])
		for _, child := range parts[1:] {
			if child = strings.TrimSpace(child); child != "" {
				out[parent] = append(out[parent], child)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read synonyms: %w", err)
	}
	return out, nil
}
