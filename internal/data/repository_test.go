//go:build integration

package data

import (
	"context"
	"errors"
	"testing"

	"kbmigrate/internal/testutil"
)

func TestCategoryRepository_GetAll(t *testing.T) {
	db := testutil.NewSourceDB(t)
	testutil.Seed(t, db,
		`INSERT INTO easy_knowledge_categories (id, name, parent_id, description) VALUES (2, 'Child', 1, NULL)`,
		`INSERT INTO easy_knowledge_categories (id, name, parent_id, description) VALUES (1, 'Root', NULL, '<p>Root</p>')`,
	)
	repo := NewCategoryRepository(db)

	categories, err := repo.GetAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(categories))
	}
	if categories[0].Name != "Root" || categories[0].ParentID != nil {
		t.Errorf("expected root category first, got %+v", categories[0])
	}
	if categories[1].ParentID == nil || *categories[1].ParentID != 1 {
		t.Errorf("expected child with parent 1, got %+v", categories[1])
	}
	if Str(categories[1].Description) != "" {
		t.Errorf("expected empty description, got %q", Str(categories[1].Description))
	}
}

func TestCategoryRepository_GetCategoryIDsForPage(t *testing.T) {
	db := testutil.NewSourceDB(t)
	testutil.Seed(t, db,
		`INSERT INTO easy_knowledge_story_categories (story_id, category_id) VALUES (1, 12), (1, 10), (2, 11)`,
	)
	repo := NewCategoryRepository(db)

	ids, err := repo.GetCategoryIDsForPage(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 10 || ids[1] != 12 {
		t.Errorf("expected [10 12], got %v", ids)
	}
}

func TestPageRepository(t *testing.T) {
	db := testutil.NewSourceDB(t)
	testutil.Seed(t, db,
		`INSERT INTO easy_knowledge_stories (id, name, author_id, version) VALUES (1, 'Page1', 3, 2)`,
		`INSERT INTO easy_knowledge_story_versions (id, story_id, author_id, description, updated_on, version) VALUES
			(101, 1, 3, 'v2 text', '2024-02-01 10:00:00', 2),
			(100, 1, 3, 'v1 text', '2024-01-01 10:00:00', 1)`,
	)
	repo := NewSQLPageRepository(db)
	ctx := context.Background()

	pages, err := repo.GetAllPages(ctx)
	if err != nil {
		t.Fatalf("GetAllPages failed: %v", err)
	}
	if len(pages) != 1 || pages[0].Name != "Page1" || pages[0].Version != 2 {
		t.Fatalf("unexpected pages: %+v", pages)
	}

	versions, err := repo.GetVersions(ctx, 1)
	if err != nil {
		t.Fatalf("GetVersions failed: %v", err)
	}
	if len(versions) != 2 || versions[0].Version != 1 || versions[1].Version != 2 {
		t.Fatalf("expected ascending versions, got %+v", versions)
	}
	if Str(versions[0].Description) != "v1 text" {
		t.Errorf("expected 'v1 text', got %q", Str(versions[0].Description))
	}

	page, err := repo.GetPageByID(ctx, 1)
	if err != nil || page.Name != "Page1" {
		t.Errorf("GetPageByID: %+v, %v", page, err)
	}
	if _, err := repo.GetPageByID(ctx, 999); err == nil {
		t.Error("expected error for missing page")
	}
}

func TestPageRepository_GetPageByID_MultipleRecords(t *testing.T) {
	db := testutil.NewSourceDB(t)
	// A schema without the primary key allows the corruption the check guards against.
	testutil.Seed(t, db,
		`DROP TABLE easy_knowledge_stories`,
		`CREATE TABLE easy_knowledge_stories (id INTEGER, name TEXT, author_id INTEGER, version INTEGER, created_on TEXT, updated_on TEXT, storyviews INTEGER DEFAULT 0)`,
		`INSERT INTO easy_knowledge_stories (id, name, version) VALUES (5, 'A', 1), (5, 'B', 1)`,
	)
	repo := NewSQLPageRepository(db)

	_, err := repo.GetPageByID(context.Background(), 5)
	if !errors.Is(err, ErrMultipleRecords) {
		t.Errorf("expected ErrMultipleRecords, got %v", err)
	}
}

func TestAttachmentRepository(t *testing.T) {
	db := testutil.NewSourceDB(t)
	testutil.Seed(t, db,
		`INSERT INTO attachments (id, container_id, container_type, filename) VALUES
			(1, 10, 'EasyKnowledgeStory', 'image.png'),
			(2, 20, 'EasyKnowledgeStory', 'image.png'),
			(3, 10, 'EasyKnowledgeStory', 'unique.png'),
			(4, 99, 'Issue', 'other.txt')`,
		`INSERT INTO attachment_versions (id, attachment_id, version, filename, disk_directory, disk_filename) VALUES
			(11, 1, 1, 'image.png', '2024/01', 'a_image.png'),
			(12, 1, 2, 'image.png', '2024/02', 'b_image.png'),
			(21, 2, 1, 'image.png', '2024/01', 'c_image.png'),
			(31, 3, 1, 'unique.png', '2024/01', 'd_unique.png'),
			(41, 4, 1, 'other.txt', NULL, 'e_other.txt')`,
	)
	repo := NewAttachmentRepository(db)
	ctx := context.Background()

	same, err := repo.GetSameNameAttachments(ctx)
	if err != nil {
		t.Fatalf("GetSameNameAttachments failed: %v", err)
	}
	if len(same) != 2 {
		t.Fatalf("expected 2 same-name rows (versions of one attachment do not collide), got %+v", same)
	}
	if same[0].AttachmentID != 1 || same[1].AttachmentID != 2 {
		t.Errorf("expected attachments 1 and 2, got %+v", same)
	}

	byType, err := repo.GetVersionsByContainerType(ctx, "EasyKnowledgeStory")
	if err != nil {
		t.Fatalf("GetVersionsByContainerType failed: %v", err)
	}
	if len(byType) != 4 {
		t.Errorf("expected 4 story attachment versions, got %d", len(byType))
	}

	byID, err := repo.GetVersionsByIDs(ctx, []int64{41, 12})
	if err != nil {
		t.Fatalf("GetVersionsByIDs failed: %v", err)
	}
	if len(byID) != 2 || byID[0].ID != 12 || byID[1].ID != 41 {
		t.Errorf("unexpected versions by id: %+v", byID)
	}
	if Str(byID[1].ContainerType) != "Issue" {
		t.Errorf("expected container columns from attachments, got %+v", byID[1])
	}

	byAttachment, err := repo.GetVersionsByAttachmentIDs(ctx, []int64{1})
	if err != nil {
		t.Fatalf("GetVersionsByAttachmentIDs failed: %v", err)
	}
	if len(byAttachment) != 2 {
		t.Errorf("expected 2 versions of attachment 1, got %d", len(byAttachment))
	}

	none, err := repo.GetVersionsByIDs(ctx, nil)
	if err != nil || none != nil {
		t.Errorf("empty id list must short-circuit, got %v, %v", none, err)
	}
}

func TestDiagramRepository_GetByIDs(t *testing.T) {
	db := testutil.NewSourceDB(t)
	testutil.Seed(t, db,
		`INSERT INTO diagrams (id, title, png) VALUES (1, 'Flow', 'data:image/png;base64,iVBORw0KGgo='), (2, 'Other', NULL)`,
	)
	repo := NewDiagramRepository(db)

	diagrams, err := repo.GetByIDs(context.Background(), []int64{1, 3})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(diagrams) != 1 || diagrams[0].Title != "Flow" {
		t.Errorf("unexpected diagrams: %+v", diagrams)
	}
}

func TestUserRepository_GetAll(t *testing.T) {
	db := testutil.NewSourceDB(t)
	testutil.Seed(t, db, `INSERT INTO users (id, login, firstname, lastname) VALUES (1, 'jdoe', 'John', 'Doe')`)

	users, err := NewUserRepository(db).GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(users) != 1 || Str(users[0].Login) != "jdoe" {
		t.Errorf("unexpected users: %+v", users)
	}
}
