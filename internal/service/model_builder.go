// Package service builds the migration model from the source store.
package service

import (
	"context"
	"errors"
	"fmt"

	"kbmigrate/internal/data"
	"kbmigrate/internal/idspace"
	"kbmigrate/internal/logger"
	"kbmigrate/internal/model"
	"kbmigrate/internal/title"
)

var (
	errCategoryCycle   = errors.New("category parent cycle")
	errDanglingParent  = errors.New("category parent not found")
	errUnknownCategory = errors.New("unknown category")
)

// CategorySource defines the interface for reading categories and memberships.
type CategorySource interface {
	GetAll(ctx context.Context) ([]*data.Category, error)
	GetCategoryIDsForPage(ctx context.Context, pageID int64) ([]int64, error)
}

// PageSource defines the interface for reading stories and their versions.
type PageSource interface {
	GetAllPages(ctx context.Context) ([]*data.Page, error)
	GetVersions(ctx context.Context, pageID int64) ([]*data.PageVersion, error)
}

// ModelBuilder turns categories, stories and story versions into pages and
// revisions.
type ModelBuilder struct {
	categories CategorySource
	pages      PageSource
	users      *UserResolver
	custom     model.Customizations
	log        logger.Logger
}

// NewModelBuilder creates a new ModelBuilder. Customizations apply only when
// enabled.
func NewModelBuilder(categories CategorySource, pages PageSource, users *UserResolver, custom model.Customizations, log logger.Logger) *ModelBuilder {
	return &ModelBuilder{
		categories: categories,
		pages:      pages,
		users:      users,
		custom:     custom.Effective(),
		log:        log,
	}
}

// Build creates the category pages, the story pages and the story revisions.
func (b *ModelBuilder) Build(ctx context.Context) (*model.Model, error) {
	m := model.New()
	categoryTitles, err := b.addCategories(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := b.addPages(ctx, m, categoryTitles); err != nil {
		return nil, err
	}
	if err := b.addRevisions(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// categoryTitle walks from c to its root and returns Category:<root>/.../<c>.
// A cycle or a missing parent ends the walk early.
func (b *ModelBuilder) categoryTitle(c *data.Category, byID map[int64]*data.Category) string {
	builder := title.New(title.Category)
	visited := make(map[int64]bool)
	for cur := c; cur != nil; {
		if visited[cur.ID] {
			b.log.With(map[string]interface{}{"category_id": c.ID, "repeated_id": cur.ID}).
				Error(errCategoryCycle, "stopping category title walk")
			break
		}
		visited[cur.ID] = true
		builder.Append(cur.Name)
		if cur.ParentID == nil {
			break
		}
		parent, ok := byID[*cur.ParentID]
		if !ok {
			b.log.With(map[string]interface{}{"category_id": cur.ID, "parent_id": *cur.ParentID}).
				Error(errDanglingParent, "stopping category title walk")
			break
		}
		cur = parent
	}
	return builder.Invert().Build()
}

// uniqueTitle appends the source id to a formatted title that is taken.
func (b *ModelBuilder) uniqueTitle(m *model.Model, formatted string, sourceID int64) string {
	if !m.TitleTaken(formatted) {
		return formatted
	}
	renamed := fmt.Sprintf("%s (%d)", formatted, sourceID)
	b.log.With(map[string]interface{}{"title": formatted, "renamed": renamed, "source_id": sourceID}).
		Warn("duplicate title")
	return renamed
}

func (b *ModelBuilder) addCategories(ctx context.Context, m *model.Model) (map[int64]string, error) {
	rows, err := b.categories.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	byID := make(map[int64]*data.Category, len(rows))
	for _, c := range rows {
		byID[c.ID] = c
	}

	titles := make(map[int64]string, len(rows))
	for _, c := range rows {
		id := idspace.Allocate(c.ID, idspace.Category)
		p, err := model.NewPage(id, c.ID, model.KindCategory, c.Name, b.uniqueTitle(m, b.categoryTitle(c, byID), c.ID))
		if err != nil {
			return nil, err
		}
		p.Version = 1
		p.ParentCategoryID = c.ParentID
		if err := m.AddPage(p); err != nil {
			return nil, err
		}
		titles[c.ID] = p.FormattedTitle
	}

	for _, c := range rows {
		id := idspace.Allocate(c.ID, idspace.Category)
		text := data.Str(c.Description)
		if c.ParentID != nil {
			if parent, ok := titles[*c.ParentID]; ok {
				text = model.AppendCategoryLinks(text, []string{parent})
			}
		}
		authorID := data.Int(c.AuthorID)
		rev := model.Revision{
			ID:         id,
			PageID:     id,
			Version:    1,
			AuthorID:   authorID,
			AuthorName: b.users.Name(authorID),
			Comment:    model.MigrationComment,
			Text:       text,
			Timestamp:  parseTimestamp(c.UpdatedOn),
		}
		if err := m.AddRevision(rev); err != nil {
			return nil, err
		}
	}
	return titles, nil
}

func (b *ModelBuilder) addPages(ctx context.Context, m *model.Model, categoryTitles map[int64]string) error {
	rows, err := b.pages.GetAllPages(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}
	for _, row := range rows {
		formatted := title.New(title.Main).Append(row.Name).Build()
		log := b.log.With(map[string]interface{}{"page_id": row.ID, "title": formatted})

		original := formatted
		if mod, ok := b.custom.PagesToModify[formatted]; ok {
			if mod.Drop {
				log.Info("page dropped by customization")
				continue
			}
			formatted = mod.Rename
			log.Info("page renamed by customization to " + formatted)
		}

		categories, err := b.pageCategories(ctx, row.ID, categoryTitles, log)
		if err != nil {
			return err
		}
		extra, ok := b.custom.CategoriesToAdd[formatted]
		if !ok {
			extra = b.custom.CategoriesToAdd[original]
		}
		for _, name := range extra {
			categories = appendUnique(categories, title.Qualify(title.Category, name))
		}

		p, err := model.NewPage(idspace.Allocate(row.ID, idspace.Page), row.ID, model.KindPage, row.Name, b.uniqueTitle(m, formatted, row.ID))
		if err != nil {
			return err
		}
		p.Version = row.Version
		p.Categories = categories
		if err := m.AddPage(p); err != nil {
			return err
		}
	}
	return nil
}

// pageCategories resolves memberships to category titles. One unknown
// category drops the whole list.
func (b *ModelBuilder) pageCategories(ctx context.Context, pageID int64, categoryTitles map[int64]string, log logger.Logger) ([]string, error) {
	ids, err := b.categories.GetCategoryIDsForPage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories of page %d: %w", pageID, err)
	}
	var categories []string
	for _, id := range ids {
		t, ok := categoryTitles[id]
		if !ok {
			log.Error(fmt.Errorf("%w: %d", errUnknownCategory, id), "dropping category list")
			return nil, nil
		}
		categories = appendUnique(categories, t)
	}
	return categories, nil
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

func (b *ModelBuilder) addRevisions(ctx context.Context, m *model.Model) error {
	for _, p := range m.Pages() {
		if p.Kind != model.KindPage {
			continue
		}
		versions, err := b.pages.GetVersions(ctx, p.SourceID)
		if err != nil {
			return fmt.Errorf("failed to load versions of page %d: %w", p.SourceID, err)
		}
		var parent *int64
		for _, v := range versions {
			if b.custom.CurrentRevisionOnly && v.Version != p.Version {
				continue
			}
			authorID := data.Int(v.AuthorID)
			rev := model.Revision{
				ID:         v.ID,
				PageID:     p.ID,
				Version:    v.Version,
				AuthorID:   authorID,
				AuthorName: b.users.Name(authorID),
				Text:       model.AppendCategoryLinks(data.Str(v.Description), p.Categories),
				Timestamp:  parseTimestamp(v.UpdatedOn),
				ParentID:   parent,
			}
			if err := m.AddRevision(rev); err != nil {
				return err
			}
			id := v.ID
			parent = &id
		}
		if len(m.Revisions[p.ID]) == 0 {
			b.log.With(map[string]interface{}{"page_id": p.ID, "title": p.FormattedTitle}).
				Warn("page has no revisions")
		}
	}
	return nil
}
