package markup

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// IDSet is a set of source ids.
type IDSet map[int64]struct{}

// Add inserts id.
func (s IDSet) Add(id int64) { s[id] = struct{}{} }

// Has reports whether id is in the set.
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order.
func (s IDSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// References collects what revision bodies point at outside themselves.
type References struct {
	// Diagrams named by include_diagram directives.
	Diagrams IDSet
	// Attachments linked without a version marker: latest version wanted.
	Attachments IDSet
	// Attachment-version rows linked with a version marker.
	AttachmentVersions IDSet
}

// NewReferences returns empty References.
func NewReferences() References {
	return References{
		Diagrams:           make(IDSet),
		Attachments:        make(IDSet),
		AttachmentVersions: make(IDSet),
	}
}

// Merge adds everything in o to r.
func (r References) Merge(o References) {
	for id := range o.Diagrams {
		r.Diagrams.Add(id)
	}
	for id := range o.Attachments {
		r.Attachments.Add(id)
	}
	for id := range o.AttachmentVersions {
		r.AttachmentVersions.Add(id)
	}
}

// Empty reports whether nothing was referenced.
func (r References) Empty() bool {
	return len(r.Diagrams) == 0 && len(r.Attachments) == 0 && len(r.AttachmentVersions) == 0
}

var diagramDirective = regexp.MustCompile(`\{\{include_diagram\((\d+)[^)]*\)\}\}`)

// attachmentURL matches download, thumbnail and plain attachment links of
// the given host. Group 1 is the id, group 2 the rest of the path.
func attachmentURL(domain string) *regexp.Regexp {
	return regexp.MustCompile(`https?://` + regexp.QuoteMeta(domain) +
		`/attachments/(?:download/|thumbnail/)?(\d+)([^\s"'<>\[\]|)]*)`)
}

func isVersionLink(suffix string) bool {
	return strings.Contains(strings.ToLower(suffix), "version")
}

// Scanner finds diagram and attachment references in revision bodies.
type Scanner struct {
	attachments *regexp.Regexp
}

// NewScanner creates a Scanner for links into domain. With an empty domain
// the scanner finds nothing.
func NewScanner(domain string) *Scanner {
	s := &Scanner{}
	if domain != "" {
		s.attachments = attachmentURL(domain)
	}
	return s
}

// Scan returns the references found in body.
func (s *Scanner) Scan(body string) References {
	refs := NewReferences()
	if s.attachments == nil {
		return refs
	}
	for _, m := range diagramDirective.FindAllStringSubmatch(body, -1) {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			refs.Diagrams.Add(id)
		}
	}
	for _, m := range s.attachments.FindAllStringSubmatch(body, -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if isVersionLink(m[2]) {
			refs.AttachmentVersions.Add(id)
		} else {
			refs.Attachments.Add(id)
		}
	}
	return refs
}

// Scan is a convenience for NewScanner(domain).Scan(body).
func Scan(body, domain string) References {
	return NewScanner(domain).Scan(body)
}
