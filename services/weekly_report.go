package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"llmpedia-backend/internal/config"
	"llmpedia-backend/internal/rag"
	"llmpedia-backend/models"
)

// ReportFormat is how a stored weekly review is encoded.
type ReportFormat string

const (
	FormatJSON     ReportFormat = "json"
	FormatMarkdown ReportFormat = "markdown"
)

var (
	ErrReviewNotFound = errors.New("weekly review not found")
	ErrInvalidReport  = errors.New("invalid weekly report")
)

// reportSections maps JSON section keys to display titles.
var reportSections = map[string]string{
	"scratchpad":                       "Scratchpad",
	"new_developments_findings":        "New Developments & Findings",
	"highlight_of_the_week":            "Highlight of the Week",
	"related_websites_libraries_repos": "Related Websites, Libraries and Repos",
}

func sectionTitle(key string) string {
	if title, ok := reportSections[key]; ok {
		return title
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// WeekStart returns the Monday (UTC midnight) of the week containing d.
func WeekStart(d time.Time) time.Time {
	d = d.UTC()
	offset := (int(d.Weekday()) + 6) % 7
	return time.Date(d.Year(), d.Month(), d.Day()-offset, 0, 0, 0, 0, time.UTC)
}

// DetectFormat picks JSON for a document that is a valid JSON object and
// markdown otherwise.
func DetectFormat(raw string) ReportFormat {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return FormatJSON
	}
	return FormatMarkdown
}

// ParseWeeklyReport parses raw as the given format and links citations in
// every section body. A document in the other format is an error.
func ParseWeeklyReport(raw string, format ReportFormat, weekStart time.Time, linker *rag.Linker) (*models.WeeklyReport, error) {
	var (
		report *models.WeeklyReport
		err    error
	)
	switch format {
	case FormatJSON:
		report, err = parseJSONReport(raw, weekStart)
	case FormatMarkdown:
		report, err = parseMarkdownReport(raw)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidReport, format)
	}
	if err != nil {
		return nil, err
	}

	report.WeekStart = weekStart
	report.Format = string(format)
	seen := map[string]struct{}{}
	for i := range report.Sections {
		linked, ids := linker.LinkCitations(report.Sections[i].Body)
		report.Sections[i].Body = linked
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			report.References = append(report.References, id)
		}
	}
	return report, nil
}

// parseJSONReport reads the sections in document order; the first key holds
// the author's scratchpad and is not a section.
func parseJSONReport(raw string, weekStart time.Time) (*models.WeeklyReport, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidReport)
	}

	report := &models.WeeklyReport{
		Title: fmt.Sprintf("(%s to %s)",
			weekStart.Format("January 2, 2006"), weekStart.AddDate(0, 0, 6).Format("January 2, 2006")),
	}
	first := true
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
		}
		key, _ := keyTok.(string)

		var body string
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("%w: section %q is not a string", ErrInvalidReport, key)
		}
		if first {
			first = false
			continue
		}
		report.Sections = append(report.Sections, models.ReportSection{
			Key:   key,
			Title: sectionTitle(key),
			Body:  strings.TrimSpace(body),
		})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidReport)
	}
	if len(report.Sections) == 0 {
		return nil, fmt.Errorf("%w: no sections", ErrInvalidReport)
	}
	return report, nil
}

// parseMarkdownReport expects a "# Title" line followed by "## Section" blocks.
func parseMarkdownReport(raw string) (*models.WeeklyReport, error) {
	if DetectFormat(raw) == FormatJSON {
		return nil, fmt.Errorf("%w: document is JSON, not markdown", ErrInvalidReport)
	}

	report := &models.WeeklyReport{}
	var (
		current *models.ReportSection
		body    strings.Builder
	)
	flush := func() {
		if current != nil {
			current.Body = strings.TrimSpace(body.String())
			report.Sections = append(report.Sections, *current)
		}
		body.Reset()
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "## "):
			flush()
			current = &models.ReportSection{Title: strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))}
		case strings.HasPrefix(trimmed, "# ") && report.Title == "" && current == nil:
			report.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		default:
			if current != nil {
				body.WriteString(line)
				body.WriteByte('\n')
			}
		}
	}
	flush()

	if report.Title == "" {
		return nil, fmt.Errorf("%w: missing title line", ErrInvalidReport)
	}
	if len(report.Sections) == 0 {
		return nil, fmt.Errorf("%w: no sections", ErrInvalidReport)
	}
	return report, nil
}

// WeeklyReviews reads stored reviews and parses them.
type WeeklyReviews struct {
	col    *mongo.Collection
	linker *rag.Linker
}

func NewWeeklyReviews(db *mongo.Database, linker *rag.Linker) *WeeklyReviews {
	return &WeeklyReviews{col: db.Collection(config.WeeklyReviewsCollection), linker: linker}
}

// GetWeeklyReport returns the review for the week containing date.
func (w *WeeklyReviews) GetWeeklyReport(ctx context.Context, date time.Time) (*models.WeeklyReport, error) {
	start := WeekStart(date)
	var review models.WeeklyReview
	err := w.col.FindOne(ctx, bson.M{"date": start}).Decode(&review)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, err
	}
	return ParseWeeklyReport(review.Review, DetectFormat(review.Review), start, w.linker)
}

// LatestWeeklyReport returns the most recent stored review.
func (w *WeeklyReviews) LatestWeeklyReport(ctx context.Context) (*models.WeeklyReport, error) {
	var review models.WeeklyReview
	opts := options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}})
	err := w.col.FindOne(ctx, bson.D{}, opts).Decode(&review)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, err
	}
	start := WeekStart(review.Date)
	return ParseWeeklyReport(review.Review, DetectFormat(review.Review), start, w.linker)
}
