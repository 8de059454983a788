package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"kbmigrate/internal/bucket"
	"kbmigrate/internal/logger"
	"kbmigrate/internal/model"
	"kbmigrate/internal/mwxml"
)

// Compose assembles the import package: output.xml for importDump.php and
// an images directory for importImages.php.
type Compose struct {
	ResultDir string
	Store     *bucket.Store
	Log       logger.Logger
}

// Summary counts what compose wrote.
type Summary struct {
	Pages     int
	Revisions int
	Files     int
}

// Run writes the import package into ResultDir.
func (c *Compose) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	m, err := LoadModel(ctx, c.Store)
	if err != nil {
		return sum, err
	}
	_, wikitext, err := bucket.LoadMap[string](ctx, c.Store, bucket.RevisionWikitext)
	if err != nil {
		return sum, err
	}
	fileKeys, files, err := bucket.LoadMap[ExtractedFile](ctx, c.Store, bucket.ExtractedFiles)
	if err != nil {
		return sum, err
	}

	images, err := NewDirFileStore(filepath.Join(c.ResultDir, "images"))
	if err != nil {
		return sum, err
	}
	for _, name := range fileKeys {
		f := files[name]
		if _, _, err := copyFile(images, f.Name, f.Path); err != nil {
			c.Log.With(map[string]interface{}{"title": f.Name, "source_path": f.Path}).
				Error(err, "failed to copy upload file")
			continue
		}
		sum.Files++
	}

	out, err := os.Create(filepath.Join(c.ResultDir, "output.xml"))
	if err != nil {
		return sum, fmt.Errorf("failed to create output.xml: %w", err)
	}
	defer out.Close()

	w, err := mwxml.NewWriter(out)
	if err != nil {
		return sum, err
	}
	for _, p := range m.Pages() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		revs := m.Revisions[p.ID]
		if len(revs) == 0 {
			c.Log.With(map[string]interface{}{"page_id": p.ID, "title": p.FormattedTitle}).
				Warn("page has no revisions, not exported")
			continue
		}
		page := mwxml.Page{
			Title:     p.FormattedTitle,
			Namespace: mwxml.NamespaceOf(p.FormattedTitle),
			ID:        p.ID,
		}
		for _, r := range revs {
			// File page revisions reuse attachment-version ids, which may
			// collide with converted story revisions.
			text, ok := r.Text, true
			if p.Kind != model.KindAttachment {
				text, ok = wikitext[key(r.ID)]
			}
			if !ok {
				text = r.Text
				if text != "" {
					c.Log.With(map[string]interface{}{"page_id": p.ID, "revision_id": r.ID}).
						Warn("no converted wikitext, using original body")
				}
			}
			page.Revisions = append(page.Revisions,
				mwxml.NewRevision(r.ID, r.ParentID, r.Timestamp, r.AuthorName, r.Comment, text))
		}
		if err := w.WritePage(page); err != nil {
			return sum, err
		}
		sum.Revisions += len(page.Revisions)
	}
	sum.Pages = w.Pages()
	if err := w.Close(); err != nil {
		return sum, err
	}
	if err := out.Close(); err != nil {
		return sum, fmt.Errorf("failed to close output.xml: %w", err)
	}

	c.Log.With(map[string]interface{}{
		"pages":     sum.Pages,
		"revisions": sum.Revisions,
		"files":     sum.Files,
	}).Info("compose: done")
	return sum, nil
}
