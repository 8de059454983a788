// Package markup scans and rewrites legacy knowledge-base markup into
// MediaWiki wikitext.
package markup

import (
	"context"
	"errors"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"kbmigrate/internal/logger"
	"kbmigrate/internal/transcode"
)

// AnchorPlaceholder replaces the href of anchors that cannot be rewritten.
const AnchorPlaceholder = "anchor-handle-error"

var errAnchor = errors.New("malformed anchor")

var (
	imgTag        = regexp.MustCompile(`(?is)<img\b[^>]*>`)
	anchorOpen    = regexp.MustCompile(`(?is)<a\b[^>]*>`)
	anchorClose   = regexp.MustCompile(`(?i)</a\s*>`)
	lineBreak     = regexp.MustCompile(`(?i)\s*<br\s*/?>\s*`)
	listAfterPipe = regexp.MustCompile(`(?m)^(\|\s*)\*`)
)

// Engine rewrites one revision body at a time.
type Engine struct {
	titles     *TitleResolver
	transcoder transcode.Transcoder
	domain     string
	log        logger.Logger

	attachments  *regexp.Regexp
	storyBracket *regexp.Regexp
	storyBare    *regexp.Regexp
}

// NewEngine creates an Engine. domain enables the rules for links back
// into the source system; it may be empty.
func NewEngine(titles *TitleResolver, t transcode.Transcoder, domain string, log logger.Logger) *Engine {
	e := &Engine{titles: titles, transcoder: t, domain: domain, log: log}
	if domain != "" {
		story := `https?://` + regexp.QuoteMeta(domain) + `/easy_knowledge_stories/(\d+)[^\s\[\]|<>"]*`
		e.attachments = attachmentURL(domain)
		e.storyBracket = regexp.MustCompile(`\[` + story + `(?:\s+([^\]]*))?\]`)
		e.storyBare = regexp.MustCompile(story)
	}
	return e
}

// Rewrite converts body, already transcoded to wikitext, for page pageID.
// Existing <syntaxhighlight> blocks are left alone so a second pass over the
// output changes nothing.
func (e *Engine) Rewrite(ctx context.Context, body string, pageID int64) string {
	var out strings.Builder
	for _, seg := range SplitBlocks(body, syntaxHighlight) {
		if seg.Inside || seg.Unclosed {
			out.WriteString(seg.Raw())
			continue
		}
		out.WriteString(e.rewriteProse(ctx, seg.Body, pageID))
	}
	return out.String()
}

func (e *Engine) rewriteProse(ctx context.Context, text string, pageID int64) string {
	text = DecodeEntities(text)
	var out strings.Builder
	for _, seg := range SplitBlocks(text, preBlock) {
		switch {
		case seg.Inside:
			out.WriteString(ConvertCodeBlock(seg.Body))
		case seg.Unclosed:
			out.WriteString(seg.Body)
		default:
			out.WriteString(e.postprocess(ctx, seg.Body, pageID))
		}
	}
	return out.String()
}

func (e *Engine) postprocess(ctx context.Context, text string, pageID int64) string {
	text = e.rewriteDiagrams(text, pageID)
	text = ReplaceBetween(text, `attachment:"`, `"`, func(name string) string {
		if strings.TrimSpace(name) == "" {
			return `attachment:"` + name + `"`
		}
		return "[[" + e.titles.Resolve(name, pageID) + "]]"
	})
	text = e.rewriteTables(ctx, text, pageID)
	text = e.rewriteImages(text, pageID)
	text = e.rewriteAnchors(text, pageID)
	text = e.rewriteStoryLinks(text, pageID)
	return text
}

// ReplaceBetween replaces every span opened by start and closed by the next
// end on the same line with replace(enclosed). A start without an end on
// its line is kept as is.
func ReplaceBetween(content, start, end string, replace func(string) string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		parts := strings.Split(line, start)
		if len(parts) < 2 {
			continue
		}
		var b strings.Builder
		b.WriteString(parts[0])
		for _, part := range parts[1:] {
			pos := strings.Index(part, end)
			if pos < 0 {
				b.WriteString(start + part)
				continue
			}
			b.WriteString(replace(part[:pos]))
			b.WriteString(part[pos+len(end):])
		}
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) rewriteDiagrams(text string, pageID int64) string {
	return diagramDirective.ReplaceAllStringFunc(text, func(directive string) string {
		m := diagramDirective.FindStringSubmatch(directive)
		id, _ := strconv.ParseInt(m[1], 10, 64)
		if t, ok := e.titles.Diagram(id); ok {
			return "[[" + t + "]]"
		}
		e.log.With(map[string]interface{}{"diagram_id": id, "page_id": pageID}).Warn("diagram not resolved")
		return directive
	})
}

func (e *Engine) rewriteTables(ctx context.Context, text string, pageID int64) string {
	text = e.transcodeBlocks(ctx, text, tableFigure, pageID)
	return e.transcodeBlocks(ctx, text, bareTable, pageID)
}

func (e *Engine) transcodeBlocks(ctx context.Context, text string, c Construct, pageID int64) string {
	var out strings.Builder
	for _, seg := range SplitBlocks(text, c) {
		if !seg.Inside {
			out.WriteString(seg.Body)
			continue
		}
		converted, err := e.transcoder.Transcode(ctx, transcode.HTML, transcode.MediaWiki, seg.Raw())
		if err != nil {
			e.log.With(map[string]interface{}{"page_id": pageID, "construct": c.Name}).
				Error(err, "failed to transcode table")
			out.WriteString(seg.Raw())
			continue
		}
		out.WriteString(listAfterPipe.ReplaceAllString(strings.TrimSpace(converted), "$1\n*"))
	}
	return out.String()
}

func (e *Engine) rewriteImages(text string, pageID int64) string {
	var unwrapped strings.Builder
	for _, seg := range SplitBlocks(text, imageFigure) {
		unwrapped.WriteString(seg.Body)
	}
	return imgTag.ReplaceAllStringFunc(unwrapped.String(), func(tag string) string {
		_, attrs, ok := parseTag(tag)
		src := strings.TrimSpace(attrs["src"])
		if !ok || src == "" {
			return tag
		}
		return e.imageLink(src, pageID, tag)
	})
}

func (e *Engine) imageLink(src string, pageID int64, tag string) string {
	u, err := url.Parse(src)
	if err != nil {
		e.log.With(map[string]interface{}{"src": src, "page_id": pageID}).Error(err, "failed to parse image source")
		return tag
	}
	switch u.Scheme {
	case "":
		if u.Host != "" {
			return "[" + src + "]"
		}
		name, err := url.PathUnescape(path.Base(u.Path))
		if err != nil {
			name = path.Base(u.Path)
		}
		return "[[" + e.titles.Resolve(name, pageID) + "]]"
	case "http", "https":
		if e.attachments == nil || !strings.EqualFold(u.Host, e.domain) {
			return "[" + src + "]"
		}
		m := e.attachments.FindStringSubmatch(src)
		if m == nil {
			return "[" + src + "]"
		}
		id, _ := strconv.ParseInt(m[1], 10, 64)
		if t, ok := e.titles.Attachment(id, isVersionLink(m[2])); ok {
			return "[[" + t + "]]"
		}
		e.log.With(map[string]interface{}{"src": src, "page_id": pageID}).Warn("attachment link not resolved")
		return "[" + src + "]"
	}
	return tag
}

func (e *Engine) rewriteAnchors(text string, pageID int64) string {
	var out strings.Builder
	for {
		loc := anchorOpen.FindStringIndex(text)
		if loc == nil {
			out.WriteString(text)
			return out.String()
		}
		out.WriteString(text[:loc[0]])
		open := text[loc[0]:loc[1]]
		rest := text[loc[1]:]

		closeLoc := anchorClose.FindStringIndex(rest)
		if closeLoc == nil {
			e.log.With(map[string]interface{}{"tag": open, "page_id": pageID}).Error(errAnchor, "anchor without closing tag")
			out.WriteString("[" + AnchorPlaceholder + "]")
			text = rest
			continue
		}

		_, attrs, _ := parseTag(open)
		href := strings.TrimSpace(attrs["href"])
		if href == "" {
			e.log.With(map[string]interface{}{"tag": open, "page_id": pageID}).Error(errAnchor, "anchor without href")
			href = AnchorPlaceholder
		}
		out.WriteString(anchorLink(href, rest[:closeLoc[0]]))
		text = rest[closeLoc[1]:]
	}
}

func anchorLink(href, inner string) string {
	label := lineBreak.ReplaceAllString(inner, "")
	label = strings.NewReplacer("\r", "", "\n", "", "[", "", "]", "").Replace(label)
	label = strings.TrimSpace(label)
	if label == "" {
		if href == AnchorPlaceholder {
			return "[" + href + "]"
		}
		label = href
	}
	return "[" + href + " " + label + "]"
}

func (e *Engine) rewriteStoryLinks(text string, pageID int64) string {
	if e.storyBracket == nil {
		return text
	}
	text = e.storyBracket.ReplaceAllStringFunc(text, func(link string) string {
		m := e.storyBracket.FindStringSubmatch(link)
		t := e.storyTitle(m[1], pageID)
		if label := strings.TrimSpace(m[2]); label != "" {
			return "[[" + t + "|" + label + "]]"
		}
		return "[[" + t + "]]"
	})
	return e.storyBare.ReplaceAllStringFunc(text, func(link string) string {
		m := e.storyBare.FindStringSubmatch(link)
		return "[[" + e.storyTitle(m[1], pageID) + "]]"
	})
}

func (e *Engine) storyTitle(rawID string, pageID int64) string {
	id, _ := strconv.ParseInt(rawID, 10, 64)
	t, ok := e.titles.Story(id)
	if !ok {
		e.log.With(map[string]interface{}{"story_id": id, "page_id": pageID}).Warn("linked story not migrated")
	}
	return t
}
