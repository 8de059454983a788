package model

import (
	"regexp"
	"strings"
)

var categoryLinkLine = regexp.MustCompile(`^\[\[Category:[^\]\n]+\]\]$`)

// AppendCategoryLinks appends one [[Category:...]] line per category to text.
// categories hold qualified titles such as "Category:Cat".
func AppendCategoryLinks(text string, categories []string) string {
	if len(categories) == 0 {
		return text
	}
	links := make([]string, len(categories))
	for i, c := range categories {
		links[i] = "[[" + c + "]]"
	}
	text = strings.TrimRight(text, "\n")
	if text != "" {
		text += "\n\n"
	}
	return text + strings.Join(links, "\n")
}

// SplitCategoryLinks separates the trailing block of category link lines
// from text. links is empty when text does not end in such a block.
func SplitCategoryLinks(text string) (body, links string) {
	lines := strings.Split(text, "\n")
	i := len(lines)
	for i > 0 && categoryLinkLine.MatchString(lines[i-1]) {
		i--
	}
	if i == len(lines) {
		return text, ""
	}
	body = strings.TrimRight(strings.Join(lines[:i], "\n"), "\n")
	return body, strings.Join(lines[i:], "\n")
}
