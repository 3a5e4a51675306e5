// Package synthesis gathers context from several sources, ranks it against a
// query and compresses it to a token budget.
package synthesis

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// SourceType names a context source.
type SourceType string

const (
	SourceFile   SourceType = "file"
	SourceCode   SourceType = "code"
	SourceMemory SourceType = "memory"
)

// ErrUnknownSource is returned for source types with no registered source.
var ErrUnknownSource = errors.New("unknown source type")

const (
	// DefaultTargetTokens is used when neither the caller nor the config
	// sets a budget.
	DefaultTargetTokens = 4000
	// charsPerToken is the usual estimate for English text and code.
	charsPerToken = 4
	// minTruncateTokens is the smallest tail worth truncating a chunk into.
	minTruncateTokens = 32
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Chunk is one piece of gathered context.
type Chunk struct {
	Source    SourceType `json:"type"`
	Origin    string     `json:"origin"`
	Content   string     `json:"content"`
	Relevance float64    `json:"relevance"`
	Tokens    int        `json:"tokens"`
}

// Context is the synthesized result.
type Context struct {
	Query            string  `json:"query"`
	Chunks           []Chunk `json:"chunks"`
	TotalTokens      int     `json:"total_tokens"`
	OriginalTokens   int     `json:"original_tokens"`
	CompressionRatio float64 `json:"compression_ratio"`
}

// Source produces candidate chunks for a query.
type Source interface {
	Type() SourceType
	Gather(ctx context.Context, query string) ([]Chunk, error)
}

// Synthesizer is the context synthesis subsystem.
type Synthesizer struct {
	sources       []Source
	byType        map[SourceType]Source
	defaultTarget int
}

// New creates a synthesizer over the given sources. defaultTarget applies
// when a call passes no token budget.
func New(defaultTarget int, sources ...Source) *Synthesizer {
	if defaultTarget <= 0 {
		defaultTarget = DefaultTargetTokens
	}
	s := &Synthesizer{
		sources:       sources,
		byType:        make(map[SourceType]Source, len(sources)),
		defaultTarget: defaultTarget,
	}
	for _, src := range sources {
		s.byType[src.Type()] = src
	}
	return s
}

// Synthesize gathers from the requested sources (all registered sources when
// sourceTypes is empty) in parallel, ranks chunks by relevance to the query,
// drops duplicates and keeps the most relevant chunks that fit targetTokens.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, sourceTypes []string, targetTokens int) (*Context, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	if targetTokens <= 0 {
		targetTokens = s.defaultTarget
	}

	selected, err := s.selectSources(sourceTypes)
	if err != nil {
		return nil, err
	}

	gathered := make([][]Chunk, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range selected {
		g.Go(func() error {
			chunks, err := src.Gather(gctx, query)
			if err != nil {
				return fmt.Errorf("gathering %s context: %w", src.Type(), err)
			}
			gathered[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Chunk
	for _, cs := range gathered {
		all = append(all, cs...)
	}

	ranked := Rank(query, Dedupe(all))
	kept, total := Compress(ranked, targetTokens)

	original := 0
	for _, c := range ranked {
		original += c.Tokens
	}
	ratio := 1.0
	if original > 0 {
		ratio = math.Round(float64(total)/float64(original)*1000) / 1000
	}

	if kept == nil {
		kept = []Chunk{}
	}
	return &Context{
		Query:            query,
		Chunks:           kept,
		TotalTokens:      total,
		OriginalTokens:   original,
		CompressionRatio: ratio,
	}, nil
}

func (s *Synthesizer) selectSources(types []string) ([]Source, error) {
	if len(types) == 0 {
		return s.sources, nil
	}
	var out []Source
	seen := map[SourceType]bool{}
	for _, t := range types {
		st := SourceType(strings.ToLower(strings.TrimSpace(t)))
		src, ok := s.byType[st]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownSource, t)
		}
		if !seen[st] {
			seen[st] = true
			out = append(out, src)
		}
	}
	return out, nil
}

// ─── Ranking & compression ───────────────────────────────────────────────────

// EstimateTokens approximates the token count of s.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + charsPerToken - 1) / charsPerToken
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"from": true, "into": true, "how": true, "what": true, "are": true, "was": true,
	"does": true, "about": true, "when": true, "where": true, "which": true,
}

// Terms returns the distinct significant lowercase terms of a query.
func Terms(query string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(query), isSeparator) {
		if len(w) < 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func isSeparator(r rune) bool {
	return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_'
}

// Rank scores chunks by the share of query terms they contain, drops chunks
// with no term at all and sorts the rest by relevance, keeping gather order
// among equals. With no significant query terms every chunk scores 1.
func Rank(query string, chunks []Chunk) []Chunk {
	terms := Terms(query)
	var out []Chunk
	for _, c := range chunks {
		if len(terms) == 0 {
			c.Relevance = 1
			out = append(out, c)
			continue
		}
		lower := strings.ToLower(c.Content)
		hits := 0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		c.Relevance = math.Round(float64(hits)/float64(len(terms))*100) / 100
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	return out
}

// Dedupe removes chunks whose whitespace-normalized content was already seen.
func Dedupe(chunks []Chunk) []Chunk {
	seen := make(map[[32]byte]bool, len(chunks))
	var out []Chunk
	for _, c := range chunks {
		key := sha256.Sum256([]byte(strings.Join(strings.Fields(strings.ToLower(c.Content)), " ")))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// Compress keeps chunks in order while they fit the budget. A chunk that
// does not fit is truncated into the remaining budget when enough is left.
func Compress(chunks []Chunk, budget int) ([]Chunk, int) {
	var (
		kept  []Chunk
		total int
	)
	for _, c := range chunks {
		if c.Tokens == 0 {
			c.Tokens = EstimateTokens(c.Content)
		}
		remaining := budget - total
		if remaining <= 0 {
			break
		}
		if c.Tokens <= remaining {
			kept = append(kept, c)
			total += c.Tokens
			continue
		}
		if remaining >= minTruncateTokens {
			c.Content = truncateRunes(c.Content, remaining*charsPerToken)
			c.Tokens = EstimateTokens(c.Content)
			kept = append(kept, c)
			total += c.Tokens
		}
	}
	return kept, total
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
