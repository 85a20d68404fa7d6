package services

import (
	"regexp"
	"strings"
)

// Chunker splits paper text into passages for indexing. It packs whole
// paragraphs up to maxChars, splits oversized paragraphs at sentence ends and
// carries the last sentences of each passage into the next one.
type Chunker struct {
	maxChars int
	overlap  int

	sentenceEnd *regexp.Regexp
	paragraph   *regexp.Regexp
}

func NewChunker(maxChars, overlap int) *Chunker {
	if maxChars <= 0 {
		maxChars = 2000
	}
	if overlap < 0 || overlap >= maxChars/2 {
		overlap = maxChars / 10
	}
	return &Chunker{
		maxChars:    maxChars,
		overlap:     overlap,
		sentenceEnd: regexp.MustCompile(`[.!?]+\s+`),
		paragraph:   regexp.MustCompile(`\n\s*\n+`),
	}
}

// Split returns the passages of text in order. Text that already fits is
// returned as a single passage.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.maxChars {
		return []string{text}
	}

	var units []string
	for _, p := range c.paragraph.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(p) <= c.maxChars {
			units = append(units, p)
			continue
		}
		units = append(units, c.sentences(p)...)
	}

	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunk := current.String()
		chunks = append(chunks, chunk)
		current.Reset()
		if tail := c.tail(chunk); tail != "" {
			current.WriteString(tail)
		}
	}

	for _, u := range units {
		if current.Len() > 0 && current.Len()+2+len(u) > c.maxChars {
			flush()
			if current.Len()+2+len(u) > c.maxChars {
				current.Reset()
			}
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(u)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// sentences splits an oversized paragraph at sentence ends, hard-cutting any
// single sentence longer than maxChars.
func (c *Chunker) sentences(p string) []string {
	var out []string
	last := 0
	for _, loc := range c.sentenceEnd.FindAllStringIndex(p, -1) {
		out = append(out, strings.TrimSpace(p[last:loc[1]]))
		last = loc[1]
	}
	if last < len(p) {
		out = append(out, strings.TrimSpace(p[last:]))
	}

	var fitted []string
	for _, s := range out {
		for len(s) > c.maxChars {
			cut := c.maxChars
			if i := strings.LastIndexByte(s[:cut], ' '); i > cut/2 {
				cut = i
			}
			fitted = append(fitted, strings.TrimSpace(s[:cut]))
			s = strings.TrimSpace(s[cut:])
		}
		if s != "" {
			fitted = append(fitted, s)
		}
	}
	return fitted
}

// tail returns the trailing whole sentences of chunk that fit in overlap.
func (c *Chunker) tail(chunk string) string {
	if c.overlap == 0 {
		return ""
	}
	ends := c.sentenceEnd.FindAllStringIndex(chunk, -1)
	for _, loc := range ends {
		if len(chunk)-loc[1] <= c.overlap {
			return strings.TrimSpace(chunk[loc[1]:])
		}
	}
	return ""
}
