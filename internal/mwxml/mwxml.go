// Package mwxml writes and reads the MediaWiki XML export format consumed
// by importDump.php.
package mwxml

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// Export schema written by this package.
const (
	SchemaNS      = "http://www.mediawiki.org/xml/export-0.11/"
	SchemaVersion = "0.11"
	TimeFormat    = "2006-01-02T15:04:05Z"
)

// Namespace ids of the target wiki.
const (
	NamespaceMain     = 0
	NamespaceFile     = 6
	NamespaceCategory = 14
)

// NamespaceOf derives the namespace id from a qualified title.
func NamespaceOf(title string) int {
	switch {
	case strings.HasPrefix(title, "Category:"):
		return NamespaceCategory
	case strings.HasPrefix(title, "File:"):
		return NamespaceFile
	}
	return NamespaceMain
}

// Contributor is the author of a revision.
type Contributor struct {
	Username string `xml:"username"`
}

// Text is the body of a revision.
type Text struct {
	Space string `xml:"xml:space,attr,omitempty"`
	Bytes int    `xml:"bytes,attr"`
	Value string `xml:",chardata"`
}

// Revision is one <revision> element.
type Revision struct {
	ID          int64       `xml:"id"`
	ParentID    *int64      `xml:"parentid,omitempty"`
	Timestamp   string      `xml:"timestamp"`
	Contributor Contributor `xml:"contributor"`
	Comment     string      `xml:"comment,omitempty"`
	Model       string      `xml:"model"`
	Format      string      `xml:"format"`
	Text        Text        `xml:"text"`
}

// NewRevision fills the fixed wikitext fields of a revision.
func NewRevision(id int64, parentID *int64, ts time.Time, username, comment, text string) Revision {
	stamp := ""
	if !ts.IsZero() {
		stamp = ts.UTC().Format(TimeFormat)
	}
	return Revision{
		ID:          id,
		ParentID:    parentID,
		Timestamp:   stamp,
		Contributor: Contributor{Username: username},
		Comment:     comment,
		Model:       "wikitext",
		Format:      "text/x-wiki",
		Text:        Text{Space: "preserve", Bytes: len(text), Value: text},
	}
}

// Page is one <page> element.
type Page struct {
	XMLName   xml.Name   `xml:"page"`
	Title     string     `xml:"title"`
	Namespace int        `xml:"ns"`
	ID        int64      `xml:"id"`
	Revisions []Revision `xml:"revision"`
}

// Writer streams pages into a <mediawiki> document.
type Writer struct {
	buf   *bufio.Writer
	enc   *xml.Encoder
	root  xml.StartElement
	pages int
}

// NewWriter writes the XML header and the opening <mediawiki> element.
func NewWriter(w io.Writer) (*Writer, error) {
	buf := bufio.NewWriter(w)
	if _, err := buf.WriteString(xml.Header); err != nil {
		return nil, fmt.Errorf("failed to write xml header: %w", err)
	}
	enc := xml.NewEncoder(buf)
	enc.Indent("", "  ")
	root := xml.StartElement{
		Name: xml.Name{Local: "mediawiki"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: SchemaNS},
			{Name: xml.Name{Local: "version"}, Value: SchemaVersion},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, fmt.Errorf("failed to open mediawiki element: %w", err)
	}
	return &Writer{buf: buf, enc: enc, root: root}, nil
}

// WritePage encodes one page. Text must be valid UTF-8.
func (w *Writer) WritePage(p Page) error {
	for _, r := range p.Revisions {
		if !utf8.ValidString(r.Text.Value) {
			return fmt.Errorf("revision %d of %q is not valid UTF-8", r.ID, p.Title)
		}
	}
	if err := w.enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode page %q: %w", p.Title, err)
	}
	w.pages++
	return nil
}

// Pages returns the number of pages written so far.
func (w *Writer) Pages() int {
	return w.pages
}

// Close closes the <mediawiki> element and flushes. It does not close the
// underlying writer.
func (w *Writer) Close() error {
	if err := w.enc.EncodeToken(w.root.End()); err != nil {
		return fmt.Errorf("failed to close mediawiki element: %w", err)
	}
	if err := w.enc.Flush(); err != nil {
		return fmt.Errorf("failed to flush xml: %w", err)
	}
	if _, err := w.buf.WriteString("\n"); err != nil {
		return err
	}
	return w.buf.Flush()
}

// ReadPages decodes every <page> of an export document.
func ReadPages(r io.Reader) ([]Page, error) {
	d := xml.NewDecoder(r)
	var pages []Page
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return pages, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read export: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "page" {
			continue
		}
		var p Page
		if err := d.DecodeElement(&p, &start); err != nil {
			return nil, fmt.Errorf("failed to decode page: %w", err)
		}
		pages = append(pages, p)
	}
}
