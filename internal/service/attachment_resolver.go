package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"kbmigrate/internal/data"
	"kbmigrate/internal/idspace"
	"kbmigrate/internal/logger"
	"kbmigrate/internal/markup"
	"kbmigrate/internal/model"
	"kbmigrate/internal/title"
)

// AttachmentSource defines the interface for reading attachment versions.
type AttachmentSource interface {
	GetSameNameAttachments(ctx context.Context) ([]*data.SameNameAttachment, error)
	GetVersionsByContainerType(ctx context.Context, containerType string) ([]*data.AttachmentVersion, error)
	GetVersionsByIDs(ctx context.Context, ids []int64) ([]*data.AttachmentVersion, error)
	GetVersionsByAttachmentIDs(ctx context.Context, ids []int64) ([]*data.AttachmentVersion, error)
}

// DiagramSource defines the interface for reading diagrams.
type DiagramSource interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*data.Diagram, error)
}

// AttachmentResolver adds attachments and diagrams to a built model.
type AttachmentResolver struct {
	attachments   AttachmentSource
	diagrams      DiagramSource
	users         *UserResolver
	containerType string
	filesDir      string
	log           logger.Logger
}

// NewAttachmentResolver creates a new AttachmentResolver. Attachments of
// containerType are matched against migrated pages; binaries are expected
// under filesDir.
func NewAttachmentResolver(attachments AttachmentSource, diagrams DiagramSource, users *UserResolver, containerType, filesDir string, log logger.Logger) *AttachmentResolver {
	return &AttachmentResolver{
		attachments:   attachments,
		diagrams:      diagrams,
		users:         users,
		containerType: containerType,
		filesDir:      filesDir,
		log:           log,
	}
}

// Resolve records same-name collisions, attached and referenced attachment
// versions, then synthesises one file page per attachment and resolves
// referenced diagrams.
func (r *AttachmentResolver) Resolve(ctx context.Context, m *model.Model, refs markup.References) error {
	if err := r.loadSameName(ctx, m); err != nil {
		return err
	}
	if err := r.addAttached(ctx, m); err != nil {
		return err
	}
	if err := r.addReferenced(ctx, m, refs); err != nil {
		return err
	}
	if err := r.synthesise(m); err != nil {
		return err
	}
	return r.addDiagrams(ctx, m, refs)
}

func (r *AttachmentResolver) loadSameName(ctx context.Context, m *model.Model) error {
	rows, err := r.attachments.GetSameNameAttachments(ctx)
	if err != nil {
		return fmt.Errorf("failed to load same-name attachments: %w", err)
	}
	for _, row := range rows {
		fields, ok := m.SameName[row.Filename]
		if !ok {
			fields = make(model.SameNameFields)
			m.SameName[row.Filename] = fields
		}
		fields[row.AttachmentID] = []string{
			data.Str(row.ContainerType),
			strconv.FormatInt(data.Int(row.ContainerID), 10),
			strconv.FormatInt(row.AttachmentID, 10),
		}
	}
	return nil
}

// targetFilename prefixes colliding filenames with their disambiguating fields.
func targetFilename(m *model.Model, filename string, attachmentID int64) string {
	fields, ok := m.SameName[filename][attachmentID]
	if !ok {
		return filename
	}
	return strings.Join(fields, "_") + "_" + filename
}

func (r *AttachmentResolver) version(m *model.Model, row *data.AttachmentVersion, pageID int64) model.AttachmentVersion {
	authorID := data.Int(row.AuthorID)
	return model.AttachmentVersion{
		RevisionID:     row.ID,
		AttachmentID:   row.AttachmentID,
		Version:        row.Version,
		CreatedOn:      parseTimestamp(row.CreatedOn),
		UpdatedOn:      parseTimestamp(row.UpdatedAt),
		Summary:        data.Str(row.Description),
		AuthorID:       authorID,
		AuthorName:     r.users.Name(authorID),
		Filename:       row.Filename,
		SourcePath:     filepath.Join(r.filesDir, data.Str(row.DiskDirectory), row.DiskFilename),
		TargetFilename: targetFilename(m, row.Filename, row.AttachmentID),
		PageID:         pageID,
		ContentType:    data.Str(row.ContentType),
		Size:           row.Filesize,
		Digest:         data.Str(row.Digest),
	}
}

// containerPage returns the id of the migrated story holding row, or 0.
func (r *AttachmentResolver) containerPage(m *model.Model, row *data.AttachmentVersion) int64 {
	if row.ContainerID == nil || data.Str(row.ContainerType) != r.containerType {
		return 0
	}
	p, ok := m.Page(idspace.Allocate(*row.ContainerID, idspace.Page))
	if !ok || p.Kind != model.KindPage {
		return 0
	}
	return p.ID
}

func (r *AttachmentResolver) addAttached(ctx context.Context, m *model.Model) error {
	rows, err := r.attachments.GetVersionsByContainerType(ctx, r.containerType)
	if err != nil {
		return fmt.Errorf("failed to load attachments: %w", err)
	}
	for _, row := range rows {
		pageID := r.containerPage(m, row)
		if pageID == 0 {
			r.log.With(map[string]interface{}{"attachment_id": row.AttachmentID, "container_id": data.Int(row.ContainerID)}).
				Debug("skipping attachment of a page that is not migrated")
			continue
		}
		if err := m.AddAttachmentVersion(r.version(m, row, pageID)); err != nil {
			return err
		}
	}
	return nil
}

func (r *AttachmentResolver) addReferenced(ctx context.Context, m *model.Model, refs markup.References) error {
	byVersion, err := r.attachments.GetVersionsByIDs(ctx, refs.AttachmentVersions.Sorted())
	if err != nil {
		return fmt.Errorf("failed to load referenced attachment versions: %w", err)
	}
	byAttachment, err := r.attachments.GetVersionsByAttachmentIDs(ctx, refs.Attachments.Sorted())
	if err != nil {
		return fmt.Errorf("failed to load referenced attachments: %w", err)
	}

	found := make(markup.IDSet)
	for _, row := range append(byVersion, byAttachment...) {
		found.Add(row.ID)
		if a, ok := m.Attachments[row.AttachmentID]; ok && a.HasRevision(row.ID) {
			continue
		}
		if err := m.AddAttachmentVersion(r.version(m, row, r.containerPage(m, row))); err != nil {
			return err
		}
	}
	for id := range refs.AttachmentVersions {
		if !found.Has(id) {
			r.log.With(map[string]interface{}{"attachment_version_id": id}).Warn("referenced attachment version not found")
		}
	}
	return nil
}

// synthesise creates a file page and a single empty revision per
// attachment, named after its latest version.
func (r *AttachmentResolver) synthesise(m *model.Model) error {
	ids := make([]int64, 0, len(m.Attachments))
	for id := range m.Attachments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		a := m.Attachments[id]
		latest, ok := a.Latest()
		if !ok {
			continue
		}
		target := latest.TargetFilename
		if m.TitleTaken(title.Qualify(title.File, target)) {
			renamed := fmt.Sprintf("%d_%s", id, target)
			r.log.With(map[string]interface{}{"attachment_id": id, "title": target, "renamed": renamed}).
				Warn("duplicate file title")
			target = renamed
		}
		for n, v := range a.Versions {
			v.TargetFilename = target
			a.Versions[n] = v
		}

		pageID := idspace.Allocate(id, idspace.Attachment)
		p, err := model.NewPage(pageID, id, model.KindAttachment, latest.Filename, title.Qualify(title.File, target))
		if err != nil {
			return err
		}
		p.Version = latest.Version
		p.OwnerPageID = latest.PageID
		if err := m.AddPage(p); err != nil {
			return err
		}

		timestamp := latest.UpdatedOn
		if timestamp.IsZero() {
			timestamp = latest.CreatedOn
		}
		rev := model.Revision{
			ID:         latest.RevisionID,
			PageID:     pageID,
			Version:    latest.Version,
			AuthorID:   latest.AuthorID,
			AuthorName: latest.AuthorName,
			Comment:    model.MigrationComment,
			Timestamp:  timestamp,
		}
		if err := m.AddRevision(rev); err != nil {
			return err
		}
	}
	return nil
}

func (r *AttachmentResolver) addDiagrams(ctx context.Context, m *model.Model, refs markup.References) error {
	ids := refs.Diagrams.Sorted()
	if len(ids) == 0 {
		return nil
	}
	rows, err := r.diagrams.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load diagrams: %w", err)
	}
	for _, row := range rows {
		log := r.log.With(map[string]interface{}{"diagram_id": row.ID})
		payload, err := decodePayload(data.Str(row.PNG))
		if err != nil {
			log.Error(err, "failed to decode diagram payload")
			continue
		}
		target := DiagramFilename(row.ID, row.Title)
		d, err := model.NewDiagram(row.ID, row.Title, payload, target, title.Qualify(title.File, target))
		if err != nil {
			log.Error(err, "skipping diagram")
			continue
		}
		m.Diagrams[row.ID] = d
	}
	for _, id := range ids {
		if _, ok := m.Diagrams[id]; !ok {
			r.log.With(map[string]interface{}{"diagram_id": id}).Warn("referenced diagram not resolved")
		}
	}
	return nil
}

var filenameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

// DiagramFilename returns the upload name of a diagram.
func DiagramFilename(id int64, name string) string {
	return fmt.Sprintf("Diagram_%d_%s.png", id, filenameReplacer.Replace(strings.TrimSpace(name)))
}

// decodePayload strips an optional data URI prefix and decodes base64.
func decodePayload(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if comma := strings.IndexByte(s, ','); comma >= 0 {
			s = s[comma+1:]
		}
	}
	payload, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 payload: %w", err)
	}
	return payload, nil
}
