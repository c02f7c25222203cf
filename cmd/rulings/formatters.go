package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pevans/rulings/ruling"
	"github.com/pevans/rulings/store"
)

// printRulingsTable prints rulings in human-readable table format
func printRulingsTable(docs []ruling.Document, total, offset int) {
	if len(docs) == 0 {
		fmt.Println("No rulings to display.")
		return
	}

	fmt.Printf("Showing %d-%d of %d rulings\n\n", offset+1, offset+len(docs), total)

	fmt.Printf("%-12s %-5s %-12s %-50s\n", "ID", "TYPE", "PUBLISHED", "TITLE")
	fmt.Println(strings.Repeat("-", 82))
	for _, doc := range docs {
		fmt.Printf("%-12s %-5s %-12s %-50s\n",
			doc.ID.String(),
			doc.DocumentType,
			doc.PublicationDate.Format("2006-01-02"),
			truncate(doc.Title, 50),
		)
		if doc.Details != nil && doc.Details.LocalPath != "" {
			fmt.Printf("%-12s   File: %s\n", "", doc.Details.LocalPath)
		}
	}
}

// printRunsTable prints recorded runs, newest first
func printRunsTable(runs []store.Run) {
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}

	fmt.Printf("%-36s %-26s %-9s %-17s %-6s %-10s\n", "RUN", "SOURCE", "MODE", "STARTED", "FOUND", "STATUS")
	fmt.Println(strings.Repeat("-", 109))
	for _, run := range runs {
		status := "ok"
		if !run.Success {
			status = "failed"
		}
		fmt.Printf("%-36s %-26s %-9s %-17s %-6d %-10s\n",
			run.ID.String(),
			truncate(run.Source, 26),
			run.Mode,
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Found,
			status,
		)
		if run.Error != nil {
			fmt.Printf("   Error: %s\n", truncate(*run.Error, 100))
		}
	}
}

// printJSON prints v as indented JSON
func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(data))
}
