// Package ruling holds the ruling identifier grammar, URL synthesis and the
// document record handed to callers.
package ruling

import "time"

// Document is a discovered ruling. It is produced once by the row extractor
// and not modified by the pipeline afterwards, except for Details.LocalPath
// when the caller asks for downloads.
type Document struct {
	ID              Identifier    `json:"document_id"`
	Title           string        `json:"title"`
	Source          string        `json:"source"`
	Court           string        `json:"court"`
	DocumentType    string        `json:"document_type"`
	PDFURL          string        `json:"pdf_url"`
	HTMLURL         string        `json:"html_url"`
	PublicationDate time.Time     `json:"date"`
	ExtractedAt     time.Time     `json:"extraction_date"`
	Magistrate      string        `json:"magistrate"`
	Details         *CourtDetails `json:"details,omitempty"`
}

// CourtDetails carries the fields only the constitutional court exposes.
type CourtDetails struct {
	SentenceType     string `json:"sentence_type"`
	LocalPath        string `json:"local_path,omitempty"`
	DownloadedFormat string `json:"downloaded_format,omitempty"`
}

// NewDocument builds the record for id found on a page dated published.
func NewDocument(id Identifier, source, court, title string, urls URLs, published, extractedAt time.Time) Document {
	return Document{
		ID:              id,
		Title:           title,
		Source:          source,
		Court:           court,
		DocumentType:    id.DocumentType(),
		PDFURL:          urls.Document,
		HTMLURL:         urls.HTML,
		PublicationDate: published,
		ExtractedAt:     extractedAt,
		Details: &CourtDetails{
			SentenceType: id.DocumentType(),
		},
	}
}
