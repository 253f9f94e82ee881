// Package search maintains a full-text index over the training log, so the
// athlete can find sessions by description, comment or sport.
package search

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"

	"github.com/nbouchiba/allure/internal/plan"
)

// Lister is the slice of the session store the index rebuild needs.
type Lister interface {
	ListSessions(ctx context.Context) ([]plan.TrainingSession, error)
}

// sessionDoc is the indexed shape of a session.
type sessionDoc struct {
	Date        string `json:"date"`
	Discipline  string `json:"discipline"`
	Sport       string `json:"sport"`
	Description string `json:"description"`
	Comment     string `json:"comment"`
}

// Index wraps a bleve index over training sessions.
type Index struct {
	idx bleve.Index
}

// Open opens the index at path, creating it when absent.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist || os.IsNotExist(err) {
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// OpenMemOnly creates an in-memory index, used by tests.
func OpenMemOnly() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// Close closes the index.
func (i *Index) Close() error {
	return i.idx.Close()
}

// IndexSession adds or updates one session in the index.
func (i *Index) IndexSession(ts *plan.TrainingSession) error {
	doc := sessionDoc{
		Date:        ts.Date.Format("2006-01-02"),
		Discipline:  string(ts.Discipline),
		Sport:       ts.Sport,
		Description: ts.Description,
		Comment:     ts.Comment,
	}
	return i.idx.Index(ts.ID, doc)
}

// Remove deletes one session from the index.
func (i *Index) Remove(sessionID string) error {
	return i.idx.Delete(sessionID)
}

// Rebuild reindexes the whole store. The index is derived data; rebuilding
// from the store is always safe.
func (i *Index) Rebuild(ctx context.Context, store Lister) error {
	sessions, err := store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions for indexing: %w", err)
	}

	batch := i.idx.NewBatch()
	for idx := range sessions {
		s := &sessions[idx]
		doc := sessionDoc{
			Date:        s.Date.Format("2006-01-02"),
			Discipline:  string(s.Discipline),
			Sport:       s.Sport,
			Description: s.Description,
			Comment:     s.Comment,
		}
		if err := batch.Index(s.ID, doc); err != nil {
			return fmt.Errorf("failed to index session %s: %w", s.ID, err)
		}
	}

	return i.idx.Batch(batch)
}

// Search returns the IDs of sessions matching the query, best first.
func (i *Index) Search(query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
