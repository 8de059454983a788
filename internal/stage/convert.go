package stage

import (
	"context"
	"strings"

	"kbmigrate/internal/bucket"
	"kbmigrate/internal/logger"
	"kbmigrate/internal/markup"
	"kbmigrate/internal/model"
	"kbmigrate/internal/transcode"

	"github.com/microcosm-cc/bluemonday"
)

// Convert turns every page and category revision into wikitext.
type Convert struct {
	Transcoder    transcode.Transcoder
	SourceDialect string
	Store         *bucket.Store
	Log           logger.Logger
}

// Converter rewrites single revision bodies.
type Converter struct {
	model      *model.Model
	transcoder transcode.Transcoder
	dialect    string
	replace    map[string]string
	engine     *markup.Engine
	sanitizer  *bluemonday.Policy
	log        logger.Logger
}

// NewConverter creates a Converter for the pages of m.
func NewConverter(m *model.Model, custom model.Customizations, t transcode.Transcoder, dialect string, log logger.Logger) *Converter {
	titles := markup.NewTitleResolver(m, custom.TitleCheatsheet, log)
	return &Converter{
		model:      m,
		transcoder: t,
		dialect:    dialect,
		replace:    custom.CustomizedReplace,
		engine:     markup.NewEngine(titles, t, custom.RedmineDomain, log),
		sanitizer:  bluemonday.UGCPolicy(),
		log:        log,
	}
}

// Convert rewrites text of page pageID. The trailing category block is
// kept out of the transcoder and re-attached afterwards. Category
// descriptions are sanitized once transcoded to HTML. Transcoder failures are
// logged and the untranscoded body is rewritten instead.
func (c *Converter) Convert(ctx context.Context, text string, pageID int64) string {
	body, links := model.SplitCategoryLinks(text)
	body = markup.ApplyReplacements(body, c.replace)
	body = markup.PrepareForTranscoder(body)

	log := c.log.With(map[string]interface{}{"page_id": pageID})
	html, err := c.transcoder.Transcode(ctx, c.dialect, transcode.HTML, body)
	if err != nil {
		log.Error(err, "failed to transcode body to html")
		html = body
	} else if p, ok := c.model.Page(pageID); ok && p.Kind == model.KindCategory {
		html = c.sanitizer.Sanitize(html)
	}
	wikitext, err := c.transcoder.Transcode(ctx, transcode.HTML, transcode.MediaWiki, html)
	if err != nil {
		log.Error(err, "failed to transcode body to wikitext")
		wikitext = html
	}

	wikitext = strings.TrimSpace(c.engine.Rewrite(ctx, wikitext, pageID))
	if links == "" {
		return wikitext
	}
	if wikitext == "" {
		return links
	}
	return wikitext + "\n\n" + links
}

// Run converts all revisions except the empty ones of file pages.
func (c *Convert) Run(ctx context.Context) error {
	m, err := LoadModel(ctx, c.Store)
	if err != nil {
		return err
	}
	custom, err := LoadCustomizations(ctx, c.Store)
	if err != nil {
		return err
	}
	converter := NewConverter(m, custom, c.Transcoder, c.SourceDialect, c.Log)

	var keys []string
	texts := make(map[string]string)
	for _, p := range m.Pages() {
		if p.Kind == model.KindAttachment {
			continue
		}
		for _, r := range m.Revisions[p.ID] {
			if err := ctx.Err(); err != nil {
				return err
			}
			k := key(r.ID)
			if _, dup := texts[k]; dup {
				c.Log.With(map[string]interface{}{"revision_id": r.ID, "page_id": p.ID}).Warn("duplicate revision id")
				continue
			}
			keys = append(keys, k)
			texts[k] = converter.Convert(ctx, r.Text, p.ID)
		}
	}

	if err := bucket.SaveMap(ctx, c.Store, bucket.RevisionWikitext, keys, texts); err != nil {
		return err
	}
	c.Log.With(map[string]interface{}{"revisions": len(keys)}).Info("convert: done")
	return nil
}
