package rcon

import "strings"

// ParseList extracts player names from a `list` response such as
// "There are 2 of a max of 20 players online: Alice, Bob". Anything it
// cannot make sense of yields an empty list.
func ParseList(text string) []string {
	idx := strings.IndexByte(text, ':')
	if idx < 0 {
		return []string{}
	}

	segment := strings.TrimSpace(text[idx+1:])
	if segment == "" {
		return []string{}
	}

	names := make([]string, 0, strings.Count(segment, ",")+1)
	for _, part := range strings.Split(segment, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
