package rag

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const paperIDPattern = `\d{4}\.\d{4,5}(?:v\d+)?`

// citationRe matches, leftmost first, either a citation that is already a
// markdown link (group 1) or a bare arxiv:ID token (group 2). A token glued
// to a preceding word is not a citation.
var citationRe = regexp.MustCompile(
	`\[(?i:arxiv):(` + paperIDPattern + `)\]\([^)\s]*\)` +
		`|\b(?i:arxiv):(` + paperIDPattern + `)\b`,
)

var paperIDRe = regexp.MustCompile(`^` + paperIDPattern + `$`)

// ValidPaperID reports whether id looks like an arxiv identifier.
func ValidPaperID(id string) bool {
	return paperIDRe.MatchString(id)
}

// Linker rewrites arxiv:ID citation tokens into links to the paper viewer.
type Linker struct {
	host string
}

func NewLinker(host string) *Linker {
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return &Linker{host: strings.TrimRight(host, "/")}
}

// URL is the canonical viewer address for a paper.
func (l *Linker) URL(id string) string {
	return fmt.Sprintf("https://%s/?paper_id=%s", l.host, url.QueryEscape(id))
}

func (l *Linker) link(id string) string {
	return fmt.Sprintf("[arxiv:%s](%s)", id, l.URL(id))
}

// LinkCitations rewrites every arxiv:ID token and returns the canonical ids
// cited, in first-seen order. Existing [arxiv:ID](...) links are pointed at
// the viewer URL; a viewer link maps to itself, so the operation is
// idempotent.
func (l *Linker) LinkCitations(text string) (string, []string) {
	return l.rewrite(text, nil)
}

// LinkCitationsAllowed links only ids whose canonical form is in allowed.
// Other tokens, including ones already written as links, become plain
// arxiv:ID text and are not reported.
func (l *Linker) LinkCitationsAllowed(text string, allowed []string) (string, []string) {
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[CanonicalID(id)] = struct{}{}
	}
	return l.rewrite(text, set)
}

func (l *Linker) rewrite(text string, allowed map[string]struct{}) (string, []string) {
	matches := citationRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	permitted := func(id string) bool {
		if allowed == nil {
			return true
		}
		_, ok := allowed[CanonicalID(id)]
		return ok
	}

	var (
		b    strings.Builder
		ids  []string
		seen = make(map[string]struct{})
		last int
	)
	record := func(id string) {
		id = CanonicalID(id)
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		last = m[1]
		token := text[m[0]:m[1]]

		if m[2] >= 0 {
			// Links the model wrote itself are rebuilt: a permitted id gets the
			// viewer URL, anything else loses its URL.
			id := text[m[2]:m[3]]
			if !permitted(id) {
				b.WriteString("arxiv:" + id)
				continue
			}
			b.WriteString(l.link(id))
			record(id)
			continue
		}

		id := text[m[4]:m[5]]
		if !permitted(id) {
			b.WriteString(token)
			continue
		}
		b.WriteString(l.link(id))
		record(id)
	}
	b.WriteString(text[last:])

	return b.String(), ids
}
