//go:build integration

package stage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kbmigrate/internal/bucket"
	"kbmigrate/internal/config"
	"kbmigrate/internal/data"
	"kbmigrate/internal/logger"
	"kbmigrate/internal/model"
	"kbmigrate/internal/mwxml"
	"kbmigrate/internal/service"
	"kbmigrate/internal/testutil"
	"kbmigrate/internal/transcode"
)

const containerType = "EasyKnowledgeStory"

type pipeline struct {
	workspace string
	filesDir  string
	store     *bucket.Store
	log       logger.Logger
	logBuf    *bytes.Buffer
}

func setupPipeline(t *testing.T, statements ...string) (*pipeline, *Analyze) {
	t.Helper()
	ctx := context.Background()

	db := testutil.NewSourceDB(t)
	testutil.Seed(t, db, statements...)

	p := &pipeline{
		workspace: t.TempDir(),
		filesDir:  t.TempDir(),
		logBuf:    &bytes.Buffer{},
	}
	p.log = logger.New(config.LogConfig{Level: "debug", Format: "json"}, p.logBuf)

	store, err := bucket.Open(filepath.Join(p.workspace, "buckets.db"))
	if err != nil {
		t.Fatalf("Failed to open bucket store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	p.store = store

	users, err := service.NewUserResolver(ctx, data.NewUserRepository(db), p.log)
	if err != nil {
		t.Fatalf("NewUserResolver failed: %v", err)
	}
	custom := model.Customizations{Enabled: true, RedmineDomain: "redmine.example.com"}
	analyze := &Analyze{
		Builder: service.NewModelBuilder(data.NewCategoryRepository(db), data.NewSQLPageRepository(db), users, custom, p.log),
		Resolver: service.NewAttachmentResolver(data.NewAttachmentRepository(db), data.NewDiagramRepository(db),
			users, containerType, p.filesDir, p.log),
		Custom: custom,
		Store:  store,
		Log:    p.log,
	}
	return p, analyze
}

func (p *pipeline) writeSourceFile(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(p.filesDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

var baseSeed = []string{
	`INSERT INTO users (id, login, firstname, lastname) VALUES (1, 'jdoe', 'John', 'Doe')`,
	`INSERT INTO easy_knowledge_categories (id, name, parent_id, description, author_id, updated_on) VALUES (1, 'Cat', NULL, '<p>All about cats</p>', 1, '2024-01-01 10:00:00')`,
	`INSERT INTO easy_knowledge_stories (id, name, author_id, version, created_on, updated_on) VALUES (1, 'Page1', 1, 2, '2024-01-01 10:00:00', '2024-01-02 10:00:00')`,
	`INSERT INTO easy_knowledge_story_versions (id, story_id, author_id, description, updated_on, version) VALUES (11, 1, 1, '<p>Hello</p>', '2024-01-01 10:00:00', 1)`,
	`INSERT INTO easy_knowledge_story_versions (id, story_id, author_id, description, updated_on, version) VALUES (12, 1, 1, '<p>Hello <a href="https://example.org">site</a></p>', '2024-01-02 10:00:00', 2)`,
	`INSERT INTO easy_knowledge_story_categories (story_id, category_id) VALUES (1, 1)`,
	`INSERT INTO attachments (id, container_id, container_type, filename) VALUES (5, 1, 'EasyKnowledgeStory', 'a.png')`,
	`INSERT INTO attachment_versions (id, attachment_id, version, filename, disk_directory, disk_filename, content_type, filesize, author_id, created_on) VALUES (50, 5, 1, 'a.png', '2024/01', '240101_a.png', 'image/png', 7, 1, '2024-01-01 10:00:00')`,
}

func TestPipeline_EndToEnd(t *testing.T) {
	ctx := context.Background()
	p, analyze := setupPipeline(t, baseSeed...)
	p.writeSourceFile(t, "2024/01/240101_a.png", "pngdata")

	m, err := analyze.Run(ctx)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(m.Pages()) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(m.Pages()))
	}

	pageKeys, _, err := bucket.LoadMap[*model.Page](ctx, p.store, bucket.WikiPages)
	if err != nil {
		t.Fatal(err)
	}
	if len(pageKeys) != 3 {
		t.Errorf("expected 3 entries in %s, got %d", bucket.WikiPages, len(pageKeys))
	}

	convert := &Convert{Transcoder: transcode.Identity{}, SourceDialect: transcode.HTML, Store: p.store, Log: p.log}
	if err := convert.Run(ctx); err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	extract := &Extract{Store: p.store, Log: p.log}
	extract.Files, err = NewDirFileStore(filepath.Join(p.workspace, "images"))
	if err != nil {
		t.Fatal(err)
	}
	files, err := extract.Run(ctx)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(files) != 1 || files[0].Name != "a.png" || files[0].Size != 7 {
		t.Fatalf("unexpected extracted files: %+v", files)
	}

	resultDir := filepath.Join(p.workspace, "result")
	compose := &Compose{ResultDir: resultDir, Store: p.store, Log: p.log}
	sum, err := compose.Run(ctx)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if sum.Pages != 3 || sum.Revisions != 4 || sum.Files != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}

	copied, err := os.ReadFile(filepath.Join(resultDir, "images", "a.png"))
	if err != nil || string(copied) != "pngdata" {
		t.Errorf("image not copied: %q (%v)", copied, err)
	}

	f, err := os.Open(filepath.Join(resultDir, "output.xml"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	pages, err := mwxml.ReadPages(f)
	if err != nil {
		t.Fatalf("ReadPages failed: %v", err)
	}
	byTitle := make(map[string]mwxml.Page)
	for _, page := range pages {
		byTitle[page.Title] = page
	}

	category, ok := byTitle["Category:Cat"]
	if !ok || category.Namespace != mwxml.NamespaceCategory {
		t.Errorf("missing category page: %+v", pages)
	}

	page1, ok := byTitle["Page1"]
	if !ok {
		t.Fatalf("missing Page1: %+v", pages)
	}
	if len(page1.Revisions) != 2 {
		t.Fatalf("expected 2 revisions of Page1, got %d", len(page1.Revisions))
	}
	last := page1.Revisions[1].Text.Value
	if !strings.HasSuffix(last, "[[Category:Cat]]") {
		t.Errorf("last revision does not end with the category link: %q", last)
	}
	if !strings.Contains(last, "[https://example.org site]") {
		t.Errorf("anchor was not rewritten: %q", last)
	}
	if page1.Revisions[1].ParentID == nil || *page1.Revisions[1].ParentID != 11 {
		t.Errorf("unexpected parent of revision 12: %v", page1.Revisions[1].ParentID)
	}
	if page1.Revisions[0].Contributor.Username != "jdoe" {
		t.Errorf("unexpected contributor %q", page1.Revisions[0].Contributor.Username)
	}

	file, ok := byTitle["File:a.png"]
	if !ok || file.Namespace != mwxml.NamespaceFile {
		t.Fatalf("missing file page: %+v", pages)
	}
	if len(file.Revisions) != 1 || file.Revisions[0].Text.Value != "" || file.Revisions[0].Comment != model.MigrationComment {
		t.Errorf("unexpected file page revisions: %+v", file.Revisions)
	}
}

func TestExtract_SkipsMissingFiles(t *testing.T) {
	ctx := context.Background()
	p, analyze := setupPipeline(t, baseSeed...)

	if _, err := analyze.Run(ctx); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	files, err := NewDirFileStore(filepath.Join(p.workspace, "images"))
	if err != nil {
		t.Fatal(err)
	}
	extract := &Extract{Files: files, Store: p.store, Log: p.log}

	extracted, err := extract.Run(ctx)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(extracted) != 0 {
		t.Errorf("expected nothing extracted, got %+v", extracted)
	}
	if !strings.Contains(p.logBuf.String(), "attachment file missing") {
		t.Errorf("expected the missing file to be logged, got %s", p.logBuf.String())
	}
}

func TestCompose_FallsBackToOriginalText(t *testing.T) {
	ctx := context.Background()
	p, analyze := setupPipeline(t, baseSeed...)

	if _, err := analyze.Run(ctx); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	// convert and extract never ran
	compose := &Compose{ResultDir: filepath.Join(p.workspace, "result"), Store: p.store, Log: p.log}
	sum, err := compose.Run(ctx)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if sum.Pages != 3 || sum.Files != 0 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if !strings.Contains(p.logBuf.String(), "no converted wikitext") {
		t.Errorf("expected fallback warning, got %s", p.logBuf.String())
	}
}

func TestLoadModel_RoundTrip(t *testing.T) {
	ctx := context.Background()
	p, analyze := setupPipeline(t, baseSeed...)

	built, err := analyze.Run(ctx)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	loaded, err := LoadModel(ctx, p.store)
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	if len(loaded.Pages()) != len(built.Pages()) {
		t.Fatalf("expected %d pages, got %d", len(built.Pages()), len(loaded.Pages()))
	}
	for i, page := range built.Pages() {
		if loaded.Pages()[i].FormattedTitle != page.FormattedTitle {
			t.Errorf("page order changed at %d: %q vs %q", i, loaded.Pages()[i].FormattedTitle, page.FormattedTitle)
		}
		if len(loaded.Revisions[page.ID]) != len(built.Revisions[page.ID]) {
			t.Errorf("revisions of %q differ", page.FormattedTitle)
		}
	}
	if len(loaded.Attachments) != 1 {
		t.Errorf("expected one attachment, got %d", len(loaded.Attachments))
	}

	custom, err := LoadCustomizations(ctx, p.store)
	if err != nil {
		t.Fatal(err)
	}
	if custom.RedmineDomain != "redmine.example.com" {
		t.Errorf("customizations not persisted: %+v", custom)
	}
}

func TestCompose_FilePageKeepsEmptyBodyOnRevisionIDCollision(t *testing.T) {
	ctx := context.Background()
	seed := append([]string{}, baseSeed[:len(baseSeed)-1]...)
	// attachment-version 12 shares its id with story version 12
	seed = append(seed, `INSERT INTO attachment_versions (id, attachment_id, version, filename, disk_directory, disk_filename, content_type, filesize, author_id, created_on) VALUES (12, 5, 1, 'a.png', '2024/01', '240101_a.png', 'image/png', 7, 1, '2024-01-01 10:00:00')`)
	p, analyze := setupPipeline(t, seed...)

	if _, err := analyze.Run(ctx); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	convert := &Convert{Transcoder: transcode.Identity{}, SourceDialect: transcode.HTML, Store: p.store, Log: p.log}
	if err := convert.Run(ctx); err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	resultDir := filepath.Join(p.workspace, "result")
	compose := &Compose{ResultDir: resultDir, Store: p.store, Log: p.log}
	if _, err := compose.Run(ctx); err != nil {
		t.Fatalf("compose failed: %v", err)
	}

	f, err := os.Open(filepath.Join(resultDir, "output.xml"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	pages, err := mwxml.ReadPages(f)
	if err != nil {
		t.Fatalf("ReadPages failed: %v", err)
	}

	var checked int
	for _, page := range pages {
		switch page.Title {
		case "File:a.png":
			checked++
			if len(page.Revisions) != 1 || page.Revisions[0].ID != 12 {
				t.Fatalf("unexpected file page revisions: %+v", page.Revisions)
			}
			if got := page.Revisions[0].Text.Value; got != "" {
				t.Errorf("file page revision carries story wikitext: %q", got)
			}
		case "Page1":
			checked++
			if got := page.Revisions[1].Text.Value; !strings.Contains(got, "[https://example.org site]") {
				t.Errorf("story revision 12 lost its wikitext: %q", got)
			}
		}
	}
	if checked != 2 {
		t.Errorf("expected both Page1 and File:a.png in the export, got %+v", pages)
	}
}
