//go:build unit

package markup

import (
	"reflect"
	"testing"
)

func TestScanner_Scan(t *testing.T) {
	body := `{{include_diagram(12--Flow)}}
<img src="https://redmine.example.com/attachments/download/7/image.png">
<a href="http://redmine.example.com/attachments/thumbnail/8">thumb</a>
<img src="https://redmine.example.com/attachments/download/70/image.png?version=1">
<img src="https://elsewhere.example.com/attachments/download/99/x.png">`

	refs := NewScanner("redmine.example.com").Scan(body)

	if got := refs.Diagrams.Sorted(); !reflect.DeepEqual(got, []int64{12}) {
		t.Errorf("diagrams = %v", got)
	}
	if got := refs.Attachments.Sorted(); !reflect.DeepEqual(got, []int64{7, 8}) {
		t.Errorf("attachments = %v", got)
	}
	if got := refs.AttachmentVersions.Sorted(); !reflect.DeepEqual(got, []int64{70}) {
		t.Errorf("attachment versions = %v", got)
	}
}

func TestScanner_NoDomain(t *testing.T) {
	refs := Scan(`{{include_diagram(12)}} https://redmine.example.com/attachments/download/7/x.png`, "")
	if !refs.Empty() {
		t.Errorf("expected no references without a domain, got %+v", refs)
	}
}

func TestReferences_Merge(t *testing.T) {
	a := NewReferences()
	a.Diagrams.Add(1)
	a.Attachments.Add(2)
	b := NewReferences()
	b.Diagrams.Add(1)
	b.AttachmentVersions.Add(3)

	a.Merge(b)

	if len(a.Diagrams) != 1 || !a.Attachments.Has(2) || !a.AttachmentVersions.Has(3) {
		t.Errorf("unexpected merge result: %+v", a)
	}
	if len(b.Attachments) != 0 {
		t.Error("merge must not modify its argument")
	}
}
