package data

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CategoryRepository reads knowledge-base categories.
type CategoryRepository struct {
	DB *sqlx.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{DB: db}
}

// GetAll retrieves all categories ordered by id.
func (r *CategoryRepository) GetAll(ctx context.Context) ([]*Category, error) {
	var categories []*Category
	query := `SELECT id, name, parent_id, description, author_id, updated_on
		FROM easy_knowledge_categories ORDER BY id`
	if err := r.DB.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	return categories, nil
}

// GetCategoryIDsForPage returns the ids of the categories a story belongs to.
func (r *CategoryRepository) GetCategoryIDsForPage(ctx context.Context, pageID int64) ([]int64, error) {
	var ids []int64
	query := `SELECT category_id FROM easy_knowledge_story_categories
		WHERE story_id = ? ORDER BY category_id`
	if err := r.DB.SelectContext(ctx, &ids, r.DB.Rebind(query), pageID); err != nil {
		return nil, fmt.Errorf("failed to get categories of page %d: %w", pageID, err)
	}
	return ids, nil
}
