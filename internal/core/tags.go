package core

import "strings"

// TagSeparator joins tags in free-text input and display.
const TagSeparator = ","

// NormalizeTags splits comma-separated input into a clean tag list.
// Empty segments are dropped and duplicates are removed ignoring case;
// the first spelling wins.
func NormalizeTags(raw string) []string {
	return NormalizeTagList(strings.Split(raw, TagSeparator))
}

// NormalizeTagList applies NormalizeTags to tags that may themselves
// contain separators (e.g. values of repeated form fields).
func NormalizeTagList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		for _, part := range strings.Split(v, TagSeparator) {
			part = strings.Join(strings.Fields(part), " ")
			if part == "" {
				continue
			}
			key := strings.ToLower(part)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

// JoinTags renders a tag list for display: "Dining, Social".
func JoinTags(tags []string) string {
	return strings.Join(tags, TagSeparator+" ")
}
