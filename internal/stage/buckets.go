// Package stage runs the analyze, convert, extract and compose steps of the
// migration. Each stage reads its input buckets at start and writes its
// output buckets once at the end.
package stage

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"kbmigrate/internal/bucket"
	"kbmigrate/internal/model"
)

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

func sortedKeys[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SaveModel writes the pages, revisions, attachments, diagrams and same-name
// map of m to their buckets.
func SaveModel(ctx context.Context, s *bucket.Store, m *model.Model) error {
	var pageKeys, revisionKeys []string
	pages := make(map[string]*model.Page)
	revisions := make(map[string][]model.Revision)
	for _, p := range m.Pages() {
		k := key(p.ID)
		pageKeys = append(pageKeys, k)
		pages[k] = p
		if revs := m.Revisions[p.ID]; len(revs) > 0 {
			revisionKeys = append(revisionKeys, k)
			revisions[k] = revs
		}
	}
	if err := bucket.SaveMap(ctx, s, bucket.WikiPages, pageKeys, pages); err != nil {
		return err
	}
	if err := bucket.SaveMap(ctx, s, bucket.PageRevisions, revisionKeys, revisions); err != nil {
		return err
	}

	var attachmentKeys []string
	attachments := make(map[string]*model.Attachment)
	for _, id := range sortedKeys(m.Attachments) {
		attachmentKeys = append(attachmentKeys, key(id))
		attachments[key(id)] = m.Attachments[id]
	}
	if err := bucket.SaveMap(ctx, s, bucket.AttachmentFiles, attachmentKeys, attachments); err != nil {
		return err
	}

	var diagramKeys []string
	diagrams := make(map[string]*model.Diagram)
	for _, id := range sortedKeys(m.Diagrams) {
		diagramKeys = append(diagramKeys, key(id))
		diagrams[key(id)] = m.Diagrams[id]
	}
	if err := bucket.SaveMap(ctx, s, bucket.DiagramContents, diagramKeys, diagrams); err != nil {
		return err
	}

	sameNameKeys := make([]string, 0, len(m.SameName))
	for filename := range m.SameName {
		sameNameKeys = append(sameNameKeys, filename)
	}
	sort.Strings(sameNameKeys)
	return bucket.SaveMap(ctx, s, bucket.SameNameAttachments, sameNameKeys, m.SameName)
}

func parseKey(bucketName, k string) (int64, error) {
	id, err := strconv.ParseInt(k, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bucket %s: invalid key %q: %w", bucketName, k, err)
	}
	return id, nil
}

// LoadModel rebuilds the model saved by SaveModel.
func LoadModel(ctx context.Context, s *bucket.Store) (*model.Model, error) {
	m := model.New()

	pageKeys, pages, err := bucket.LoadMap[*model.Page](ctx, s, bucket.WikiPages)
	if err != nil {
		return nil, err
	}
	for _, k := range pageKeys {
		if err := m.AddPage(pages[k]); err != nil {
			return nil, fmt.Errorf("failed to restore page %s: %w", k, err)
		}
	}

	_, revisions, err := bucket.LoadMap[[]model.Revision](ctx, s, bucket.PageRevisions)
	if err != nil {
		return nil, err
	}
	for k, revs := range revisions {
		id, err := parseKey(bucket.PageRevisions, k)
		if err != nil {
			return nil, err
		}
		m.Revisions[id] = revs
	}

	_, attachments, err := bucket.LoadMap[*model.Attachment](ctx, s, bucket.AttachmentFiles)
	if err != nil {
		return nil, err
	}
	for k, a := range attachments {
		id, err := parseKey(bucket.AttachmentFiles, k)
		if err != nil {
			return nil, err
		}
		m.Attachments[id] = a
	}

	_, diagrams, err := bucket.LoadMap[*model.Diagram](ctx, s, bucket.DiagramContents)
	if err != nil {
		return nil, err
	}
	for k, d := range diagrams {
		id, err := parseKey(bucket.DiagramContents, k)
		if err != nil {
			return nil, err
		}
		m.Diagrams[id] = d
	}

	_, sameName, err := bucket.LoadMap[model.SameNameFields](ctx, s, bucket.SameNameAttachments)
	if err != nil {
		return nil, err
	}
	for filename, fields := range sameName {
		m.SameName[filename] = fields
	}
	return m, nil
}

// LoadCustomizations returns the customizations saved by analyze, limited
// to their effective values.
func LoadCustomizations(ctx context.Context, s *bucket.Store) (model.Customizations, error) {
	c, _, err := bucket.LoadValue[model.Customizations](ctx, s, bucket.Customizations)
	if err != nil {
		return model.Customizations{}, err
	}
	return c.Effective(), nil
}
