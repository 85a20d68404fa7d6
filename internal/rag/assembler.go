package rag

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultContextBudget is the context size, in characters, used when none is
// configured.
const DefaultContextBudget = 12000

// Assembler concatenates ranked documents into a bounded context.
type Assembler struct {
	maxChars int
}

func NewAssembler(maxChars int) *Assembler {
	if maxChars <= 0 {
		maxChars = DefaultContextBudget
	}
	return &Assembler{maxChars: maxChars}
}

func (a *Assembler) Budget() int {
	return a.maxChars
}

// formatSegment renders the tagged form of one document.
func formatSegment(id, text string) string {
	return fmt.Sprintf("[arxiv:%s]\n%s\n\n", id, strings.TrimSpace(text))
}

// Assemble adds documents in rank order until the next one would push the
// context past the budget; that document and every lower-ranked one are
// dropped whole, so a segment is never cut and its tag always survives.
func (a *Assembler) Assemble(ranked []RankedCandidate) QueryContext {
	ordered := make([]RankedCandidate, len(ranked))
	copy(ordered, ranked)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })

	qctx := QueryContext{Budget: a.maxChars}
	var b strings.Builder
	used := 0

	for i, rc := range ordered {
		if strings.TrimSpace(rc.Chunk.Text) == "" || rc.Chunk.ID == "" {
			continue
		}
		seg := formatSegment(rc.Chunk.ID, rc.Chunk.Text)
		n := utf8.RuneCountInString(seg)
		if used+n > a.maxChars {
			qctx.Dropped = len(ordered) - i
			break
		}
		b.WriteString(seg)
		used += n
		qctx.Segments = append(qctx.Segments, Segment{
			ID:   rc.Chunk.ID,
			Rank: rc.Rank,
			Text: strings.TrimSpace(rc.Chunk.Text),
		})
	}

	qctx.Text = b.String()
	return qctx
}
