package data

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLPageRepository reads knowledge-base stories and their versions.
type SQLPageRepository struct {
	db *sqlx.DB
}

// NewSQLPageRepository creates a new SQLPageRepository.
func NewSQLPageRepository(db *sqlx.DB) *SQLPageRepository {
	return &SQLPageRepository{db: db}
}

// GetAllPages retrieves all stories ordered by id.
func (r *SQLPageRepository) GetAllPages(ctx context.Context) ([]*Page, error) {
	var pages []*Page
	query := `SELECT id, name, author_id, version, created_on, updated_on, storyviews
		FROM easy_knowledge_stories ORDER BY id`
	if err := r.db.SelectContext(ctx, &pages, query); err != nil {
		return nil, fmt.Errorf("failed to get all pages: %w", err)
	}
	return pages, nil
}

// GetPageByID retrieves exactly one story. Finding several rows for one id
// is a structural error.
func (r *SQLPageRepository) GetPageByID(ctx context.Context, id int64) (*Page, error) {
	var pages []*Page
	query := `SELECT id, name, author_id, version, created_on, updated_on, storyviews
		FROM easy_knowledge_stories WHERE id = ?`
	if err := r.db.SelectContext(ctx, &pages, r.db.Rebind(query), id); err != nil {
		return nil, fmt.Errorf("failed to get page by id: %w", err)
	}
	switch len(pages) {
	case 0:
		return nil, fmt.Errorf("page with id %d not found", id)
	case 1:
		return pages[0], nil
	}
	return nil, fmt.Errorf("%w: %d stories with id %d", ErrMultipleRecords, len(pages), id)
}

// GetVersions retrieves the versions of a story in ascending version order.
func (r *SQLPageRepository) GetVersions(ctx context.Context, pageID int64) ([]*PageVersion, error) {
	var versions []*PageVersion
	query := `SELECT id, story_id, author_id, description, updated_on, version
		FROM easy_knowledge_story_versions WHERE story_id = ? ORDER BY version ASC`
	if err := r.db.SelectContext(ctx, &versions, r.db.Rebind(query), pageID); err != nil {
		return nil, fmt.Errorf("failed to get versions of page %d: %w", pageID, err)
	}
	return versions, nil
}
