package rulings

import (
	"context"

	"github.com/google/uuid"

	"github.com/pevans/rulings/fault"
	"github.com/pevans/rulings/ruling"
)

// Request is one discovery invocation.
type Request struct {
	Source     string
	Limit      int
	Download   bool
	CheckEmpty bool
}

// Result is the payload returned to a calling process. Its JSON shape is
// stable: failures carry success=false, an error and empty arrays.
type Result struct {
	Success         bool              `json:"success"`
	Error           string            `json:"error,omitempty"`
	Documents       []ruling.Document `json:"documents"`
	DownloadedCount int               `json:"downloadedCount"`
	ExtractionTime  float64           `json:"extractionTime"`
	TotalFound      int               `json:"totalFound"`
	RunID           uuid.UUID         `json:"runId"`
	Mode            string            `json:"searchMode,omitempty"`
}

// Run discovers rulings for req and, when asked, downloads each one. It
// never returns an error: failures are reported in the Result.
func (ds *DiscoveryService) Run(ctx context.Context, req Request) Result {
	start := ds.now()
	result := Result{
		Documents: []ruling.Document{},
		RunID:     uuid.New(),
	}
	ds.log.Infow("Run started", "run", result.RunID, "source", req.Source, "limit", req.Limit, "download", req.Download)

	docs, err := ds.Discover(ctx, req.Source, req.Limit, req.CheckEmpty)
	result.ExtractionTime = ds.now().Sub(start).Seconds()
	result.Mode = ds.lastMode.String()
	if err != nil {
		result.Error = fault.Message(err, 500)
		return result
	}

	if req.Download {
		for i := range docs {
			artifact := ds.downloader.Download(ctx, docs[i].PDFURL, docs[i].ID)
			if artifact == nil {
				continue
			}
			if docs[i].Details == nil {
				docs[i].Details = &ruling.CourtDetails{SentenceType: docs[i].DocumentType}
			}
			docs[i].Details.LocalPath = artifact.Path
			docs[i].Details.DownloadedFormat = string(artifact.Format)
			result.DownloadedCount++
		}
		result.ExtractionTime = ds.now().Sub(start).Seconds()
	}

	result.Success = true
	if docs != nil {
		result.Documents = docs
	}
	result.TotalFound = len(result.Documents)
	ds.log.Infow("Run finished",
		"run", result.RunID,
		"found", result.TotalFound,
		"downloaded", result.DownloadedCount,
		"seconds", result.ExtractionTime,
	)
	return result
}
