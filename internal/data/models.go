package data

// User is a row of the Redmine users table.
type User struct {
	ID        int64   `db:"id"`
	Login     *string `db:"login"`
	FirstName *string `db:"firstname"`
	LastName  *string `db:"lastname"`
}

// Category is a knowledge-base category. ParentID is nil for roots.
type Category struct {
	ID          int64   `db:"id"`
	Name        string  `db:"name"`
	ParentID    *int64  `db:"parent_id"`
	Description *string `db:"description"`
	AuthorID    *int64  `db:"author_id"`
	UpdatedOn   *string `db:"updated_on"`
}

// Page is a knowledge-base story.
type Page struct {
	ID        int64   `db:"id"`
	Name      string  `db:"name"`
	AuthorID  *int64  `db:"author_id"`
	Version   int     `db:"version"`
	CreatedOn *string `db:"created_on"`
	UpdatedOn *string `db:"updated_on"`
	ViewCount int64   `db:"storyviews"`
}

// PageVersion is one stored version of a story body.
type PageVersion struct {
	ID          int64   `db:"id"`
	PageID      int64   `db:"story_id"`
	AuthorID    *int64  `db:"author_id"`
	Description *string `db:"description"`
	UpdatedOn   *string `db:"updated_on"`
	Version     int     `db:"version"`
}

// AttachmentVersion is one version row of an attachment, joined with the
// container columns of its attachment.
type AttachmentVersion struct {
	ID            int64   `db:"id"`
	AttachmentID  int64   `db:"attachment_id"`
	Version       int     `db:"version"`
	ContainerID   *int64  `db:"container_id"`
	ContainerType *string `db:"container_type"`
	Filename      string  `db:"filename"`
	DiskDirectory *string `db:"disk_directory"`
	DiskFilename  string  `db:"disk_filename"`
	ContentType   *string `db:"content_type"`
	Filesize      int64   `db:"filesize"`
	Digest        *string `db:"digest"`
	AuthorID      *int64  `db:"author_id"`
	CreatedOn     *string `db:"created_on"`
	UpdatedAt     *string `db:"updated_at"`
	Description   *string `db:"description"`
}

// SameNameAttachment lists an attachment whose filename is shared with
// at least one other attachment.
type SameNameAttachment struct {
	AttachmentID  int64   `db:"attachment_id"`
	Filename      string  `db:"filename"`
	ContainerID   *int64  `db:"container_id"`
	ContainerType *string `db:"container_type"`
}

// Diagram is a row of the diagrams table; PNG holds a base64 payload.
type Diagram struct {
	ID        int64   `db:"id"`
	Title     string  `db:"title"`
	Position  *int64  `db:"position"`
	ProjectID *int64  `db:"project_id"`
	AuthorID  *int64  `db:"author_id"`
	UpdatedAt *string `db:"updated_at"`
	HTML      *string `db:"html"`
	PNG       *string `db:"png"`
}

// Str dereferences a nullable string column.
func Str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Int dereferences a nullable integer column.
func Int(i *int64) int64 {
	if i == nil {
		return 0
	}
	return *i
}
