package markup

import (
	"fmt"
	"path"
	"strings"

	"kbmigrate/internal/idspace"
	"kbmigrate/internal/logger"
	"kbmigrate/internal/model"
	"kbmigrate/internal/title"
)

// ImageExtensions are the file extensions treated as embeddable media.
var ImageExtensions = []string{
	"png", "jpg", "jpeg", "gif", "mp4", "ico", "pic", "bmp", "tiff", "tif", "svg", "webp",
}

// IsImage reports whether name ends in one of ImageExtensions.
func IsImage(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// StoryPlaceholder labels a link to a story that did not migrate.
func StoryPlaceholder(id int64) string {
	return fmt.Sprintf("EKBStory-%d", id)
}

// TitleResolver turns names and ids found in legacy markup into formatted
// wiki titles.
type TitleResolver struct {
	pages      []*model.Page
	byTitle    map[string][]*model.Page
	byID       map[int64]*model.Page
	revisions  map[int64]int64 // attachment-version row id -> attachment id
	diagrams   map[int64]*model.Diagram
	cheatsheet map[string]string
	log        logger.Logger
}

// NewTitleResolver indexes the pages, attachments and diagrams of m.
func NewTitleResolver(m *model.Model, cheatsheet map[string]string, log logger.Logger) *TitleResolver {
	r := &TitleResolver{
		pages:      m.Pages(),
		byTitle:    make(map[string][]*model.Page),
		byID:       make(map[int64]*model.Page),
		revisions:  make(map[int64]int64),
		diagrams:   m.Diagrams,
		cheatsheet: cheatsheet,
		log:        log,
	}
	for _, p := range r.pages {
		r.byID[p.ID] = p
		r.byTitle[p.Title] = append(r.byTitle[p.Title], p)
		if p.Kind != model.KindAttachment {
			continue
		}
		if target := title.Strip(title.File, p.FormattedTitle); target != p.Title {
			r.byTitle[target] = append(r.byTitle[target], p)
		}
	}
	for id, a := range m.Attachments {
		for _, v := range a.Versions {
			r.revisions[v.RevisionID] = id
		}
	}
	return r
}

// pick prefers the candidate owned by the page being converted.
func (r *TitleResolver) pick(name string, candidates []*model.Page, pageID int64) *model.Page {
	if len(candidates) == 1 {
		return candidates[0]
	}
	for _, c := range candidates {
		if c.OwnerPageID == pageID {
			return c
		}
	}
	r.log.With(map[string]interface{}{"title": name, "page_id": pageID, "candidates": len(candidates)}).
		Warn("ambiguous title, using first match")
	return candidates[0]
}

// Resolve looks up the formatted title for name as seen from page pageID:
// exact title, then same-basename prefix for images, then the cheatsheet.
// Unresolved names are logged and returned unchanged.
func (r *TitleResolver) Resolve(name string, pageID int64) string {
	if candidates := r.byTitle[name]; len(candidates) > 0 {
		return r.pick(name, candidates, pageID).FormattedTitle
	}
	if IsImage(name) {
		base := strings.TrimSuffix(name, path.Ext(name))
		var candidates []*model.Page
		for _, p := range r.pages {
			if strings.HasPrefix(p.Title, base) {
				candidates = append(candidates, p)
			}
		}
		if len(candidates) > 0 {
			return r.pick(name, candidates, pageID).FormattedTitle
		}
	}
	if t, ok := r.cheatsheet[name]; ok {
		return t
	}
	r.log.With(map[string]interface{}{"title": name, "page_id": pageID}).Warn("original title not found")
	return name
}

// Story returns the formatted title of the story with source id id, then
// tries the cheatsheet under its placeholder label. ok is false when
// neither knows it; the placeholder is returned then.
func (r *TitleResolver) Story(id int64) (string, bool) {
	if p, ok := r.byID[idspace.Allocate(id, idspace.Page)]; ok && p.Kind == model.KindPage {
		return p.FormattedTitle, true
	}
	label := StoryPlaceholder(id)
	if t, ok := r.cheatsheet[label]; ok {
		return t, true
	}
	return label, false
}

// Attachment returns the file title for an attachment id, or for an
// attachment-version row id when byVersion is set.
func (r *TitleResolver) Attachment(id int64, byVersion bool) (string, bool) {
	if byVersion {
		attachmentID, ok := r.revisions[id]
		if !ok {
			return "", false
		}
		id = attachmentID
	}
	p, ok := r.byID[idspace.Allocate(id, idspace.Attachment)]
	if !ok {
		return "", false
	}
	return p.FormattedTitle, true
}

// Diagram returns the file title of a resolved diagram.
func (r *TitleResolver) Diagram(id int64) (string, bool) {
	d, ok := r.diagrams[id]
	if !ok {
		return "", false
	}
	return d.FormattedTitle, true
}
