// Package model holds the page/revision/attachment records the migration
// builds during analyze and consumes in every later stage.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecord is returned when a record misses a required field.
var ErrInvalidRecord = errors.New("invalid record")

// Kind tells which source entity a page was synthesised from.
type Kind string

const (
	KindPage       Kind = "page"
	KindCategory   Kind = "category"
	KindAttachment Kind = "attachment"
)

// MigrationComment marks revisions that were synthesised by the migration.
const MigrationComment = "Imported by EasyRedmine knowledge base migration"

// Page is one target-wiki page-to-be.
type Page struct {
	ID             int64    `json:"id"`
	SourceID       int64    `json:"source_id"`
	Kind           Kind     `json:"kind"`
	Title          string   `json:"title"`
	FormattedTitle string   `json:"formatted_title"`
	Version        int      `json:"version"`
	ParentID       *int64   `json:"parent_id"`
	Categories     []string `json:"categories,omitempty"`

	// Categories only: source id of the parent category, nil for roots.
	ParentCategoryID *int64 `json:"parent_category_id,omitempty"`
	// Attachments only: page id of the owning story, 0 when pulled in by reference.
	OwnerPageID int64 `json:"owner_page_id,omitempty"`
}

// NewPage validates the required fields and returns a root-level page.
func NewPage(id, sourceID int64, kind Kind, title, formattedTitle string) (*Page, error) {
	p := &Page{
		ID:             id,
		SourceID:       sourceID,
		Kind:           kind,
		Title:          title,
		FormattedTitle: formattedTitle,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the fields every page must carry.
func (p *Page) Validate() error {
	switch {
	case p.ID == 0:
		return fmt.Errorf("%w: page without id", ErrInvalidRecord)
	case p.FormattedTitle == "":
		return fmt.Errorf("%w: page %d without formatted title", ErrInvalidRecord, p.ID)
	case p.Kind == "":
		return fmt.Errorf("%w: page %d without kind", ErrInvalidRecord, p.ID)
	}
	return nil
}

// Revision is one version of a page body.
type Revision struct {
	ID         int64     `json:"id"`
	PageID     int64     `json:"page_id"`
	Version    int       `json:"version"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Comment    string    `json:"comment"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	ParentID   *int64    `json:"parent_id"`
}

// Validate checks the fields every revision must carry.
func (r *Revision) Validate() error {
	switch {
	case r.ID == 0:
		return fmt.Errorf("%w: revision without id", ErrInvalidRecord)
	case r.PageID == 0:
		return fmt.Errorf("%w: revision %d without page", ErrInvalidRecord, r.ID)
	}
	return nil
}

// AttachmentVersion is one version of an uploaded file.
type AttachmentVersion struct {
	RevisionID     int64     `json:"revision_id"`
	AttachmentID   int64     `json:"attachment_id"`
	Version        int       `json:"version"`
	CreatedOn      time.Time `json:"created_on"`
	UpdatedOn      time.Time `json:"updated_on"`
	Summary        string    `json:"summary"`
	AuthorID       int64     `json:"author_id"`
	AuthorName     string    `json:"author_name"`
	Filename       string    `json:"filename"`
	SourcePath     string    `json:"source_path"`
	TargetFilename string    `json:"target_filename"`
	PageID         int64     `json:"page_id"`
	ContentType    string    `json:"content_type,omitempty"`
	Size           int64     `json:"size,omitempty"`
	Digest         string    `json:"digest,omitempty"`
}

// Validate checks the fields every attachment version must carry.
func (v *AttachmentVersion) Validate() error {
	switch {
	case v.AttachmentID == 0:
		return fmt.Errorf("%w: attachment version %d without attachment", ErrInvalidRecord, v.RevisionID)
	case v.Filename == "":
		return fmt.Errorf("%w: attachment %d version %d without filename", ErrInvalidRecord, v.AttachmentID, v.Version)
	case v.TargetFilename == "":
		return fmt.Errorf("%w: attachment %d version %d without target filename", ErrInvalidRecord, v.AttachmentID, v.Version)
	}
	return nil
}

// Attachment groups the versions of one file by version number.
type Attachment struct {
	ID       int64                     `json:"id"`
	Versions map[int]AttachmentVersion `json:"versions"`
}

// Add records v, replacing any version with the same number.
func (a *Attachment) Add(v AttachmentVersion) {
	if a.Versions == nil {
		a.Versions = make(map[int]AttachmentVersion)
	}
	a.Versions[v.Version] = v
}

// Latest returns the version with the highest number.
func (a *Attachment) Latest() (AttachmentVersion, bool) {
	var (
		latest AttachmentVersion
		found  bool
	)
	for n, v := range a.Versions {
		if !found || n > latest.Version {
			latest, found = v, true
		}
	}
	return latest, found
}

// HasRevision reports whether a version with the given source row id exists.
func (a *Attachment) HasRevision(revisionID int64) bool {
	for _, v := range a.Versions {
		if v.RevisionID == revisionID {
			return true
		}
	}
	return false
}

// Diagram is an externally rendered image embedded via include_diagram.
type Diagram struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Payload        []byte `json:"payload"`
	TargetFilename string `json:"target_filename"`
	FormattedTitle string `json:"formatted_title"`
}

// NewDiagram validates the required fields.
func NewDiagram(id int64, title string, payload []byte, targetFilename, formattedTitle string) (*Diagram, error) {
	d := &Diagram{
		ID:             id,
		Title:          title,
		Payload:        payload,
		TargetFilename: targetFilename,
		FormattedTitle: formattedTitle,
	}
	switch {
	case id == 0:
		return nil, fmt.Errorf("%w: diagram without id", ErrInvalidRecord)
	case len(payload) == 0:
		return nil, fmt.Errorf("%w: diagram %d without payload", ErrInvalidRecord, id)
	case targetFilename == "":
		return nil, fmt.Errorf("%w: diagram %d without target filename", ErrInvalidRecord, id)
	}
	return d, nil
}

// SameNameFields maps attachment id to the fields that disambiguate it.
type SameNameFields map[int64][]string

// Model is the complete in-memory migration model. It is built once per
// stage and persisted in one go.
type Model struct {
	pages  []*Page
	index  map[int64]*Page
	titles map[string]int64

	Revisions   map[int64][]Revision
	Attachments map[int64]*Attachment
	Diagrams    map[int64]*Diagram
	SameName    map[string]SameNameFields
}

// New creates an empty Model.
func New() *Model {
	return &Model{
		index:       make(map[int64]*Page),
		titles:      make(map[string]int64),
		Revisions:   make(map[int64][]Revision),
		Attachments: make(map[int64]*Attachment),
		Diagrams:    make(map[int64]*Diagram),
		SameName:    make(map[string]SameNameFields),
	}
}

// AddPage appends p in insertion order. Ids and formatted titles must be unique.
func (m *Model) AddPage(p *Page) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, ok := m.index[p.ID]; ok {
		return fmt.Errorf("%w: duplicate page id %d", ErrInvalidRecord, p.ID)
	}
	if other, ok := m.titles[p.FormattedTitle]; ok {
		return fmt.Errorf("%w: title %q already used by page %d", ErrInvalidRecord, p.FormattedTitle, other)
	}
	m.pages = append(m.pages, p)
	m.index[p.ID] = p
	m.titles[p.FormattedTitle] = p.ID
	return nil
}

// TitleTaken reports whether a page already uses formattedTitle.
func (m *Model) TitleTaken(formattedTitle string) bool {
	_, ok := m.titles[formattedTitle]
	return ok
}

// Page looks up a page by id.
func (m *Model) Page(id int64) (*Page, bool) {
	p, ok := m.index[id]
	return p, ok
}

// Pages returns all pages in insertion order.
func (m *Model) Pages() []*Page {
	return m.pages
}

// AddRevision appends r to its page's chain.
func (m *Model) AddRevision(r Revision) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if _, ok := m.index[r.PageID]; !ok {
		return fmt.Errorf("%w: revision %d references unknown page %d", ErrInvalidRecord, r.ID, r.PageID)
	}
	m.Revisions[r.PageID] = append(m.Revisions[r.PageID], r)
	return nil
}

// AddAttachmentVersion records v under its attachment.
func (m *Model) AddAttachmentVersion(v AttachmentVersion) error {
	if err := v.Validate(); err != nil {
		return err
	}
	a, ok := m.Attachments[v.AttachmentID]
	if !ok {
		a = &Attachment{ID: v.AttachmentID}
		m.Attachments[v.AttachmentID] = a
	}
	a.Add(v)
	return nil
}
