// Package tokenizer provides a processor that splits fulltext values into
// individual words.
package tokenizer

import (
	"fmt"
	"regexp"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/processors/fieldproc"
)

// ID is the processor id.
const ID = "tokenizer"

// DefaultSpaces matches the characters words are split on.
const DefaultSpaces = `[^\p{L}\p{N}]+`

// DefaultIgnorable matches characters removed before splitting.
const DefaultIgnorable = `['’]`

// DefaultMinWordSize is the minimum number of characters of a token.
const DefaultMinWordSize = 1

// DefaultMaxWordSize is the length after which long words are cut into pieces.
const DefaultMaxWordSize = 50

// Processor splits string values of fulltext fields into tokens.
// Tokenized fields change their type to tokenized_text. Tokenizing
// tokens again yields the same tokens.
type Processor struct {
	*fieldproc.Base

	spaces    *regexp.Regexp
	ignorable *regexp.Regexp
	minSize   int
	maxSize   int
}

// Option configures the tokenizer.
type Option func(*Processor)

// WithSpaces sets the pattern of word separators.
func WithSpaces(re *regexp.Regexp) Option {
	return func(p *Processor) {
		if re != nil {
			p.spaces = re
		}
	}
}

// WithIgnorable sets the pattern of characters removed before splitting.
func WithIgnorable(re *regexp.Regexp) Option {
	return func(p *Processor) {
		if re != nil {
			p.ignorable = re
		}
	}
}

// WithMinWordSize drops tokens shorter than size characters.
func WithMinWordSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.minSize = size
		}
	}
}

// WithMaxWordSize cuts tokens longer than size characters into pieces.
func WithMaxWordSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.maxSize = size
		}
	}
}

// New creates a tokenizer with the given options.
func New(fields map[string]domain.FieldConfig, settings map[string]any, opts ...Option) *Processor {
	p := &Processor{
		spaces:    regexp.MustCompile(DefaultSpaces),
		ignorable: regexp.MustCompile(DefaultIgnorable),
		minSize:   DefaultMinWordSize,
		maxSize:   DefaultMaxWordSize,
	}
	for _, opt := range opts {
		opt(p)
	}

	// A maximum below the minimum would drop every long word.
	if p.maxSize < p.minSize {
		p.maxSize = p.minSize
	}

	p.Base = fieldproc.NewBase(
		fieldproc.NewPlugin(ID, "Tokenizer",
			"Splits fulltext into individual words.",
			map[domain.Stage]int{
				domain.StagePreprocessIndex: 0,
				domain.StagePreprocessQuery: 0,
			}),
		settings, fields, func(v any) any { return v })
	return p
}

// Build creates a tokenizer from processor settings:
//
//	spaces         separator pattern (default DefaultSpaces)
//	ignorable      pattern of removed characters (default DefaultIgnorable)
//	min_word_size  minimum token length (default 1)
//	max_word_size  maximum token length (default 50)
//	fields         fields to process (default: all fulltext fields)
func Build(ctx driven.ProcessorContext, settings map[string]any) (*Processor, error) {
	var opts []Option
	for key, opt := range map[string]func(*regexp.Regexp) Option{
		"spaces":    WithSpaces,
		"ignorable": WithIgnorable,
	} {
		pattern := fieldproc.String(settings, key, "")
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: tokenizer %s pattern: %v", domain.ErrInvalidInput, key, err)
		}
		opts = append(opts, opt(re))
	}
	opts = append(opts,
		WithMinWordSize(fieldproc.Int(settings, "min_word_size", 0)),
		WithMaxWordSize(fieldproc.Int(settings, "max_word_size", 0)),
	)
	return New(ctx.Fields, settings, opts...), nil
}

// Tokenize splits text into tokens.
func (p *Processor) Tokenize(text string) []string {
	text = p.ignorable.ReplaceAllString(text, "")
	var tokens []string
	for _, word := range p.spaces.Split(text, -1) {
		runes := []rune(word)
		if len(runes) < p.minSize {
			continue
		}

		// Cut long words into pieces of maxSize characters.
		for start := 0; start < len(runes); start += p.maxSize {
			end := start + p.maxSize
			if end > len(runes) {
				end = len(runes)
			}
			if end-start < p.minSize {
				break
			}
			tokens = append(tokens, string(runes[start:end]))
		}
	}
	return tokens
}

// PreprocessIndexItems replaces every string value of a processed field with
// its tokens and marks the field as tokenized.
func (p *Processor) PreprocessIndexItems(items map[string]*domain.Item) {
	for _, item := range items {
		for id, f := range item.Fields {
			if !p.TestField(id, f) {
				continue
			}
			values := make([]any, 0, len(f.Values))
			for _, v := range f.Values {
				s, ok := v.(string)
				if !ok {
					values = append(values, v)
					continue
				}
				for _, tok := range p.Tokenize(s) {
					values = append(values, tok)
				}
			}
			f.Values = values
			f.Type = domain.NestType(domain.TypeTokenizedText, f.Type)
		}
	}
}

// PreprocessSearchQuery splits the keys into tokens.
func (p *Processor) PreprocessSearchQuery(q *domain.Query) {
	if !q.HasKeys() || !p.KeysApply(q) {
		return
	}
	var keys []string
	for _, k := range q.Keys {
		keys = append(keys, p.Tokenize(k)...)
	}
	q.Keys = keys
}
