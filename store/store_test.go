package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/rulings/ruling"
)

// Test helper: create a test store
func createTestStore(t *testing.T) *Store {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewStore(dbPath)
	require.NoError(t, err, "should create store")
	t.Cleanup(func() { store.Close() })
	return store
}

// Test helper: build a ruling published on the given day of September 2025
func testDocument(id string, day int) ruling.Document {
	published := time.Date(2025, 9, day, 0, 0, 0, 0, time.UTC)
	identifier := ruling.Identifier(id)
	urls := ruling.Synthesize("https://www.corteconstitucional.gov.co", identifier, 2025)
	return ruling.NewDocument(identifier, "corte_constitucional", "Corte Constitucional",
		"Sentencia "+id, urls, published, published.Add(10*time.Hour))
}

// TestNewStore_InitializesSchema verifies an empty database is usable
func TestNewStore_InitializesSchema(t *testing.T) {
	store := createTestStore(t)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	docs, err := store.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

// TestSave_RoundTrip verifies every stored field is read back
func TestSave_RoundTrip(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	doc := testDocument("T-343/25", 4)
	doc.Magistrate = "Paola Meneses"
	doc.Details.LocalPath = "documents/scraping/docx/T-343-25.docx"
	doc.Details.DownloadedFormat = "docx"

	inserted, err := store.Save(ctx, uuid.New(), doc)
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := store.Get(ctx, "T-343/25")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, "T", got.DocumentType)
	assert.Equal(t, doc.PDFURL, got.PDFURL)
	assert.Equal(t, doc.HTMLURL, got.HTMLURL)
	assert.True(t, doc.PublicationDate.Equal(got.PublicationDate))
	assert.True(t, doc.ExtractedAt.Equal(got.ExtractedAt))
	assert.Equal(t, "Paola Meneses", got.Magistrate)
	assert.Equal(t, doc.Details.LocalPath, got.Details.LocalPath)
	assert.Equal(t, "docx", got.Details.DownloadedFormat)
}

// TestSave_Duplicate verifies a known ruling is not overwritten
func TestSave_Duplicate(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	doc := testDocument("C-120/25", 4)

	_, err := store.Save(ctx, uuid.New(), doc)
	require.NoError(t, err)

	doc.Title = "changed"
	inserted, err := store.Save(ctx, uuid.New(), doc)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sentencia C-120/25", got.Title)
	n, _ := store.Count(ctx)
	assert.Equal(t, 1, n)
}

// TestGet_NotFound verifies the sentinel error
func TestGet_NotFound(t *testing.T) {
	store := createTestStore(t)

	_, err := store.Get(context.Background(), "T-1/25")

	assert.ErrorIs(t, err, ErrNotFound)
}

// TestList_Filters verifies ordering and filtering
func TestList_Filters(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	run := uuid.New()
	for _, doc := range []ruling.Document{
		testDocument("T-343/25", 2),
		testDocument("C-120/25", 4),
		testDocument("SU-045/25", 3),
		testDocument("T-350/25", 4),
	} {
		_, err := store.Save(ctx, run, doc)
		require.NoError(t, err)
	}

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, ruling.Identifier("C-120/25"), all[0].ID)
	assert.Equal(t, ruling.Identifier("T-350/25"), all[1].ID)
	assert.Equal(t, ruling.Identifier("SU-045/25"), all[2].ID)
	assert.Equal(t, ruling.Identifier("T-343/25"), all[3].ID)

	tutelas, err := store.List(ctx, Filter{DocumentType: "T"})
	require.NoError(t, err)
	assert.Len(t, tutelas, 2)

	since := time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)
	recent, err := store.List(ctx, Filter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	page, err := store.List(ctx, Filter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ruling.Identifier("SU-045/25"), page[0].ID)
}

// TestCountMatching verifies counts follow the same filter as List and
// ignore paging
func TestCountMatching(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	run := uuid.New()
	for _, doc := range []ruling.Document{
		testDocument("T-343/25", 2),
		testDocument("C-120/25", 4),
		testDocument("T-350/25", 4),
	} {
		_, err := store.Save(ctx, run, doc)
		require.NoError(t, err)
	}

	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	tutelas, err := store.CountMatching(ctx, Filter{DocumentType: "T", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, tutelas)

	since := time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)
	recent, err := store.CountMatching(ctx, Filter{Since: &since, Source: "corte_constitucional"})
	require.NoError(t, err)
	assert.Equal(t, 2, recent)

	none, err := store.CountMatching(ctx, Filter{Source: "corte_constitucional_feed"})
	require.NoError(t, err)
	assert.Zero(t, none)
}

// TestRecordRun verifies runs are listed newest first
func TestRecordRun(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 9, 4, 9, 0, 0, 0, time.UTC)
	msg := "navigation exhausted"

	first := Run{ID: uuid.New(), Source: "corte_constitucional", Mode: "normal",
		StartedAt: start, FinishedAt: start.Add(time.Minute), Success: true, Found: 3, Downloaded: 2}
	second := Run{ID: uuid.New(), Source: "corte_constitucional", Mode: "extended",
		StartedAt: start.Add(time.Hour), FinishedAt: start.Add(61 * time.Minute), Error: &msg}
	require.NoError(t, store.RecordRun(ctx, first))
	require.NoError(t, store.RecordRun(ctx, second))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.False(t, runs[0].Success)
	require.NotNil(t, runs[0].Error)
	assert.Equal(t, msg, *runs[0].Error)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.True(t, runs[1].Success)
	assert.Equal(t, 3, runs[1].Found)
	assert.Equal(t, 2, runs[1].Downloaded)
	assert.Nil(t, runs[1].Error)
	assert.True(t, first.StartedAt.Equal(runs[1].StartedAt))
}
