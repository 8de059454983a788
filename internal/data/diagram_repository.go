package data

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DiagramRepository reads embedded diagrams.
type DiagramRepository struct {
	DB *sqlx.DB
}

// NewDiagramRepository creates a new DiagramRepository.
func NewDiagramRepository(db *sqlx.DB) *DiagramRepository {
	return &DiagramRepository{DB: db}
}

// GetByIDs returns the diagrams with the given ids ordered by id.
func (r *DiagramRepository) GetByIDs(ctx context.Context, ids []int64) ([]*Diagram, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := inQuery(r.DB, `SELECT id, title, position, project_id, author_id, updated_at, html, png
		FROM diagrams WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	var diagrams []*Diagram
	if err := r.DB.SelectContext(ctx, &diagrams, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get diagrams: %w", err)
	}
	return diagrams, nil
}
