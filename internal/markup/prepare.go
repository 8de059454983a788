package markup

import (
	"sort"
	"strings"
)

// ApplyReplacements performs literal replacements on content. Longer
// search strings go first so that overlapping keys behave the same on
// every run.
func ApplyReplacements(content string, replacements map[string]string) string {
	if len(replacements) == 0 {
		return content
	}
	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		content = strings.ReplaceAll(content, k, replacements[k])
	}
	return content
}

// PrepareForTranscoder breaks `":</` sequences, which the transcoder reads
// as the start of a Textile link.
func PrepareForTranscoder(content string) string {
	return strings.ReplaceAll(content, `":</`, "\":\n</")
}
