// Package extract finds ruling identifiers in the rows of a rendered results
// page. A row qualifies when it mentions the target date in any known form;
// the first identifier pattern that matches a qualifying row names the
// ruling.
package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pevans/rulings/ruling"
	"github.com/pevans/rulings/window"
)

// Config defines where rows are found and how they are filtered.
type Config struct {
	// RowSelectors are tried in order until one yields documents.
	RowSelectors []string `yaml:"row_selectors"`
	// MinRows skips selectors that only match header noise.
	MinRows int `yaml:"min_rows"`
	// MaxRows caps how many rows of one selector are scanned.
	MaxRows int `yaml:"max_rows"`
	// MinRowLength skips rows whose trimmed text is shorter.
	MinRowLength int `yaml:"min_row_length"`

	BaseURL string `yaml:"-"`
	Court   string `yaml:"-"`
	Source  string `yaml:"-"`
}

// DefaultConfig returns the constitutional court's row layout.
func DefaultConfig() Config {
	return Config{
		RowSelectors: []string{"table tr", "tbody tr"},
		MinRows:      3,
		MaxRows:      50,
		MinRowLength: 10,
		BaseURL:      "https://www.corteconstitucional.gov.co",
		Court:        "Corte Constitucional",
		Source:       "corte_constitucional",
	}
}

// Extractor turns page rows into candidate documents.
type Extractor struct {
	config Config
	log    *zap.SugaredLogger
	now    func() time.Time
}

// New creates an extractor. A nil logger discards output and a nil clock
// uses time.Now.
func New(config Config, log *zap.SugaredLogger, now func() time.Time) *Extractor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if now == nil {
		now = time.Now
	}
	return &Extractor{config: config, log: log, now: now}
}

// ExtractPage scans doc for rows dated date and returns at most remaining
// documents in row order. Selectors are tried in order; the first one that
// produces any document ends the search.
func (e *Extractor) ExtractPage(doc *goquery.Document, date window.SearchDate, remaining int) []ruling.Document {
	if remaining <= 0 {
		return nil
	}

	for _, selector := range e.config.RowSelectors {
		rows := RowTexts(doc.Selection, selector)
		if len(rows) < e.config.MinRows {
			continue
		}

		found := e.ExtractRows(rows, date, remaining)
		if len(found) > 0 {
			e.log.Debugw("Rows matched", "selector", selector, "date", date.ISO, "documents", len(found))
			return found
		}
	}

	return nil
}

// ExtractRows applies the date and identifier matchers to row texts. Rows
// with a matching date but no identifier are skipped.
func (e *Extractor) ExtractRows(rows []string, date window.SearchDate, remaining int) []ruling.Document {
	var results []ruling.Document

	limit := len(rows)
	if e.config.MaxRows > 0 && limit > e.config.MaxRows {
		limit = e.config.MaxRows
	}

	for _, text := range rows[:limit] {
		if len(results) >= remaining {
			break
		}

		text = strings.TrimSpace(text)
		if text == "" || len(text) < e.config.MinRowLength {
			continue
		}
		if !date.Matches(text) {
			continue
		}

		id, ok := ruling.FindIdentifier(text)
		if !ok {
			continue
		}

		results = append(results, e.document(id, date))
	}

	return results
}

func (e *Extractor) document(id ruling.Identifier, date window.SearchDate) ruling.Document {
	now := e.now()
	title := fmt.Sprintf("Sentencia %s de la %s (%s)", id, e.config.Court, date.Long)
	urls := ruling.Synthesize(e.config.BaseURL, id, now.Year())
	return ruling.NewDocument(id, e.config.Source, e.config.Court, title, urls, date.Date, now)
}

// RowTexts returns the whitespace-normalized text of every element matching
// selector. Cell texts are joined with a space so adjacent cells never run
// together.
func RowTexts(sel *goquery.Selection, selector string) []string {
	var rows []string
	sel.Find(selector).Each(func(_ int, row *goquery.Selection) {
		rows = append(rows, rowText(row))
	})
	return rows
}

func rowText(row *goquery.Selection) string {
	cells := row.ChildrenFiltered("td, th")
	if cells.Length() == 0 {
		return strings.Join(strings.Fields(row.Text()), " ")
	}

	parts := make([]string, 0, cells.Length())
	cells.Each(func(_ int, cell *goquery.Selection) {
		if text := strings.Join(strings.Fields(cell.Text()), " "); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " ")
}
