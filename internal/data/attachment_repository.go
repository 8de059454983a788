package data

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const attachmentVersionColumns = `SELECT av.id, av.attachment_id, av.version,
	a.container_id, a.container_type, av.filename, av.disk_directory, av.disk_filename,
	av.content_type, av.filesize, av.digest, av.author_id, av.created_on, av.updated_at,
	av.description
	FROM attachment_versions av
	JOIN attachments a ON a.id = av.attachment_id`

// AttachmentRepository reads attachments and their versions.
type AttachmentRepository struct {
	DB *sqlx.DB
}

// NewAttachmentRepository creates a new AttachmentRepository.
func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepository {
	return &AttachmentRepository{DB: db}
}

// GetSameNameAttachments returns every attachment whose filename is used by
// two or more distinct attachments, across all containers.
func (r *AttachmentRepository) GetSameNameAttachments(ctx context.Context) ([]*SameNameAttachment, error) {
	var rows []*SameNameAttachment
	query := `SELECT DISTINCT a.id AS attachment_id, av.filename, a.container_id, a.container_type
		FROM attachment_versions av
		JOIN attachments a ON a.id = av.attachment_id
		WHERE av.filename IN (
			SELECT filename FROM attachment_versions
			GROUP BY filename HAVING COUNT(DISTINCT attachment_id) >= 2
		)
		ORDER BY av.filename, a.id`
	if err := r.DB.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get same-name attachments: %w", err)
	}
	return rows, nil
}

// GetVersionsByContainerType returns all versions of attachments held by
// containers of the given type.
func (r *AttachmentRepository) GetVersionsByContainerType(ctx context.Context, containerType string) ([]*AttachmentVersion, error) {
	var rows []*AttachmentVersion
	query := attachmentVersionColumns + ` WHERE a.container_type = ? ORDER BY av.attachment_id, av.version`
	if err := r.DB.SelectContext(ctx, &rows, r.DB.Rebind(query), containerType); err != nil {
		return nil, fmt.Errorf("failed to get attachment versions for %s: %w", containerType, err)
	}
	return rows, nil
}

// GetVersionsByContainer returns the versions attached to one container.
func (r *AttachmentRepository) GetVersionsByContainer(ctx context.Context, containerType string, containerID int64) ([]*AttachmentVersion, error) {
	var rows []*AttachmentVersion
	query := attachmentVersionColumns + ` WHERE a.container_type = ? AND a.container_id = ? ORDER BY av.attachment_id, av.version`
	if err := r.DB.SelectContext(ctx, &rows, r.DB.Rebind(query), containerType, containerID); err != nil {
		return nil, fmt.Errorf("failed to get attachment versions of container %d: %w", containerID, err)
	}
	return rows, nil
}

// GetVersionsByIDs returns attachment versions by their own row ids.
func (r *AttachmentRepository) GetVersionsByIDs(ctx context.Context, ids []int64) ([]*AttachmentVersion, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := inQuery(r.DB, attachmentVersionColumns+` WHERE av.id IN (?) ORDER BY av.attachment_id, av.version`, ids)
	if err != nil {
		return nil, err
	}
	var rows []*AttachmentVersion
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get attachment versions by id: %w", err)
	}
	return rows, nil
}

// GetVersionsByAttachmentIDs returns every version of the given attachments.
func (r *AttachmentRepository) GetVersionsByAttachmentIDs(ctx context.Context, ids []int64) ([]*AttachmentVersion, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := inQuery(r.DB, attachmentVersionColumns+` WHERE av.attachment_id IN (?) ORDER BY av.attachment_id, av.version`, ids)
	if err != nil {
		return nil, err
	}
	var rows []*AttachmentVersion
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get attachment versions by attachment id: %w", err)
	}
	return rows, nil
}
