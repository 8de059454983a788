// Package idspace maps source-table primary keys into one shared page and
// revision id namespace. Each entity class owns a disjoint range.
package idspace

// Class identifies the kind of entity a synthetic id was derived from.
type Class int

const (
	Page Class = iota
	Attachment
	Category
)

// Offsets assume source ids stay below MaxSourceID.
const (
	PageOffset       int64 = 0
	AttachmentOffset int64 = 1_000_000_000
	CategoryOffset   int64 = 1_500_000_000

	MaxSourceID int64 = 500_000_000
)

func (c Class) String() string {
	switch c {
	case Page:
		return "page"
	case Attachment:
		return "attachment"
	case Category:
		return "category"
	}
	return "unknown"
}

// Offset returns the fixed offset for class c.
func (c Class) Offset() int64 {
	switch c {
	case Attachment:
		return AttachmentOffset
	case Category:
		return CategoryOffset
	}
	return PageOffset
}

// Allocate returns the synthetic id for sourceID in class c.
func Allocate(sourceID int64, c Class) int64 {
	return sourceID + c.Offset()
}

// ClassOf reports which class a synthetic id belongs to.
func ClassOf(id int64) Class {
	switch {
	case id >= CategoryOffset:
		return Category
	case id >= AttachmentOffset:
		return Attachment
	}
	return Page
}

// SourceID strips the class offset from a synthetic id.
func SourceID(id int64) int64 {
	return id - ClassOf(id).Offset()
}
