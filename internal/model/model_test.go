//go:build unit

package model

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewPage_Validation(t *testing.T) {
	if _, err := NewPage(0, 0, KindPage, "x", "x"); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord for zero id, got %v", err)
	}
	if _, err := NewPage(1, 1, KindPage, "x", ""); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord for empty title, got %v", err)
	}
	p, err := NewPage(1, 1, KindPage, "Page1", "Page1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ParentID != nil {
		t.Error("new pages must be root pages")
	}
}

func TestModel_AddPage(t *testing.T) {
	m := New()
	p1, _ := NewPage(1, 1, KindPage, "A", "A")
	p2, _ := NewPage(2, 2, KindPage, "B", "B")
	if err := m.AddPage(p1); err != nil {
		t.Fatal(err)
	}
	if err := m.AddPage(p2); err != nil {
		t.Fatal(err)
	}

	dupID, _ := NewPage(1, 1, KindPage, "C", "C")
	if err := m.AddPage(dupID); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected duplicate id to fail, got %v", err)
	}
	dupTitle, _ := NewPage(3, 3, KindPage, "A", "A")
	if err := m.AddPage(dupTitle); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected duplicate title to fail, got %v", err)
	}

	pages := m.Pages()
	if len(pages) != 2 || pages[0].ID != 1 || pages[1].ID != 2 {
		t.Errorf("expected insertion order [1 2], got %v", pages)
	}
	if !m.TitleTaken("B") {
		t.Error("expected title B to be taken")
	}
}

func TestModel_AddRevisionRequiresPage(t *testing.T) {
	m := New()
	err := m.AddRevision(Revision{ID: 5, PageID: 99})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestAttachment_Latest(t *testing.T) {
	a := &Attachment{ID: 7}
	if _, ok := a.Latest(); ok {
		t.Fatal("empty attachment must not have a latest version")
	}
	a.Add(AttachmentVersion{AttachmentID: 7, Version: 1, RevisionID: 70, Filename: "a.png"})
	a.Add(AttachmentVersion{AttachmentID: 7, Version: 3, RevisionID: 72, Filename: "c.png"})
	a.Add(AttachmentVersion{AttachmentID: 7, Version: 2, RevisionID: 71, Filename: "b.png"})

	latest, ok := a.Latest()
	if !ok || latest.Version != 3 || latest.Filename != "c.png" {
		t.Errorf("expected version 3, got %+v", latest)
	}
	if !a.HasRevision(71) || a.HasRevision(99) {
		t.Error("HasRevision returned wrong result")
	}
}

func TestLoadCustomizations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "customizations.yml")
	content := `is-enabled: true
redmine-domain: redmine.example.com
current-revision-only: true
pages-to-modify:
  Old Page: false
  Draft: Final Page
categories-to-add:
  Final Page:
    - Extra
title-cheatsheet:
  legacy.png: File:Legacy.png
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCustomizations(path)
	if err != nil {
		t.Fatalf("LoadCustomizations failed: %v", err)
	}
	if !c.Enabled || !c.CurrentRevisionOnly || c.RedmineDomain != "redmine.example.com" {
		t.Errorf("unexpected scalar options: %+v", c)
	}
	if !c.PagesToModify["Old Page"].Drop {
		t.Error("expected 'Old Page' to be dropped")
	}
	if c.PagesToModify["Draft"].Rename != "Final Page" {
		t.Errorf("expected rename to 'Final Page', got %+v", c.PagesToModify["Draft"])
	}
	if c.TitleCheatsheet["legacy.png"] != "File:Legacy.png" {
		t.Error("cheatsheet not loaded")
	}

	// Round-trip through the bucket encoding keeps drop markers.
	raw, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	var back Customizations
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if !back.PagesToModify["Old Page"].Drop || back.PagesToModify["Draft"].Rename != "Final Page" {
		t.Errorf("bucket encoding lost modifications: %+v", back.PagesToModify)
	}
}

func TestCustomizations_Effective(t *testing.T) {
	c := Customizations{Enabled: false, RedmineDomain: "x", CurrentRevisionOnly: true}
	if eff := c.Effective(); eff.RedmineDomain != "" || eff.CurrentRevisionOnly {
		t.Errorf("disabled customizations must be inert, got %+v", eff)
	}
	c.Enabled = true
	if eff := c.Effective(); eff.RedmineDomain != "x" {
		t.Errorf("enabled customizations lost options: %+v", eff)
	}
}

func TestCategoryLinks(t *testing.T) {
	text := AppendCategoryLinks("v2 text\n", []string{"Category:Cat", "Category:Other"})
	if text != "v2 text\n\n[[Category:Cat]]\n[[Category:Other]]" {
		t.Errorf("unexpected text %q", text)
	}
	if got := AppendCategoryLinks("body", nil); got != "body" {
		t.Errorf("no categories must leave text alone, got %q", got)
	}

	body, links := SplitCategoryLinks(text)
	if body != "v2 text" || links != "[[Category:Cat]]\n[[Category:Other]]" {
		t.Errorf("SplitCategoryLinks = %q, %q", body, links)
	}
	body, links = SplitCategoryLinks("no links [[Category:Inline]] here")
	if links != "" || body != "no links [[Category:Inline]] here" {
		t.Errorf("inline links must not be split off, got %q, %q", body, links)
	}
}
