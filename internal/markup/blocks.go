package markup

import (
	"strings"

	"golang.org/x/net/html"
)

// Construct selects the tag SplitBlocks isolates. Class, when set, must be
// one of the class tokens of the outermost opening tag.
type Construct struct {
	Name  string
	Class string
}

var (
	preBlock        = Construct{Name: "pre"}
	syntaxHighlight = Construct{Name: "syntaxhighlight"}
	tableFigure     = Construct{Name: "figure", Class: "table"}
	bareTable       = Construct{Name: "table"}
	imageFigure     = Construct{Name: "figure", Class: "image"}
)

// Segment is one run of text produced by SplitBlocks.
type Segment struct {
	Inside   bool   // Body lies between Open and Close of the construct
	Unclosed bool   // construct opened but never closed; Body starts with the literal opening tag
	Open     string // literal opening tag
	Body     string
	Close    string // literal closing tag
}

// Raw reassembles the segment exactly as it appeared in the input.
func (s Segment) Raw() string {
	if s.Inside {
		return s.Open + s.Body + s.Close
	}
	return s.Body
}

// SplitBlocks scans content once, keeping a stack of open tags named
// c.Name, and cuts it into outside text and inside blocks. Nested tags of
// the same name stay inside their outermost block.
func SplitBlocks(content string, c Construct) []Segment {
	var (
		segments []Segment
		stack    []string // literal opening tags currently open
		start    int      // start of the pending outside text or block body
		open     string
	)
	name := strings.ToLower(c.Name)

	for i := 0; i < len(content); {
		lt := strings.IndexByte(content[i:], '<')
		if lt < 0 {
			break
		}
		pos := i + lt
		tag, closing, end := readTag(content, pos, name)
		if end < 0 {
			i = pos + 1
			continue
		}

		switch {
		case !closing && len(stack) == 0:
			if matchesClass(tag, c.Class) {
				if pos > start {
					segments = append(segments, Segment{Body: content[start:pos]})
				}
				open = tag
				stack = append(stack, tag)
				start = end
			}
		case !closing:
			stack = append(stack, tag)
		case closing && len(stack) > 0:
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				segments = append(segments, Segment{
					Inside: true,
					Open:   open,
					Body:   content[start:pos],
					Close:  tag,
				})
				start = end
			}
		}
		i = end
	}

	if len(stack) > 0 {
		segments = append(segments, Segment{Unclosed: true, Open: open, Body: open + content[start:]})
	} else if start < len(content) {
		segments = append(segments, Segment{Body: content[start:]})
	}
	return segments
}

// readTag checks for an opening or closing tag called name at pos. It
// returns the literal tag, whether it closes, and the offset just past it;
// end is -1 when no such tag starts at pos.
func readTag(content string, pos int, name string) (tag string, closing bool, end int) {
	rest := content[pos+1:]
	if strings.HasPrefix(rest, "/") {
		closing = true
		rest = rest[1:]
	}
	if len(rest) < len(name) || !strings.EqualFold(rest[:len(name)], name) {
		return "", false, -1
	}
	after := rest[len(name):]
	if after == "" {
		return "", false, -1
	}
	switch after[0] {
	case '>', ' ', '\t', '\n', '\r', '/':
	default:
		return "", false, -1
	}
	gt := strings.IndexByte(after, '>')
	if gt < 0 {
		return "", false, -1
	}
	end = len(content) - len(after) + gt + 1
	return content[pos:end], closing, end
}

func matchesClass(tag, class string) bool {
	if class == "" {
		return true
	}
	_, attrs, ok := parseTag(tag)
	if !ok {
		return false
	}
	for _, token := range strings.Fields(attrs["class"]) {
		if token == class {
			return true
		}
	}
	return false
}

// parseTag reads the name and attributes of a single start tag.
func parseTag(raw string) (name string, attrs map[string]string, ok bool) {
	z := html.NewTokenizer(strings.NewReader(raw))
	tt := z.Next()
	if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
		return "", nil, false
	}
	n, hasAttr := z.TagName()
	attrs = make(map[string]string)
	for hasAttr {
		var k, v []byte
		k, v, hasAttr = z.TagAttr()
		attrs[string(k)] = string(v)
	}
	return string(n), attrs, true
}

var entityReplacer = strings.NewReplacer(
	"&amp;lt;", "<",
	"&amp;gt;", ">",
	"&amp;amp;", "&",
	"&amp;quot;", `"`,
	"&amp;#34;", `"`,
	"&amp;#39;", "'",
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", `"`,
	"&#34;", `"`,
	"&#39;", "'",
)

// DecodeEntities decodes &lt; &gt; &amp; &quot; &#34; &#39; and their doubly encoded
// forms, so literal tag matching works on transcoder output.
func DecodeEntities(content string) string {
	return entityReplacer.Replace(content)
}
