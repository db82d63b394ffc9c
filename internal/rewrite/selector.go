package rewrite

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Selector matches elements by tag name, id, or both.
type Selector struct {
	Tag string
	ID  string
}

// ParseSelector parses "tag", "tag#id" or "#id".
func ParseSelector(s string) (Selector, error) {
	tag, id, hasID := strings.Cut(strings.TrimSpace(s), "#")
	if hasID && id == "" {
		return Selector{}, fmt.Errorf("selector %q: empty id", s)
	}
	if tag == "" && !hasID {
		return Selector{}, fmt.Errorf("selector %q: empty", s)
	}
	if strings.ContainsAny(tag, " .[]>+~:#") || strings.ContainsAny(id, " .[]>+~:#") {
		return Selector{}, fmt.Errorf("selector %q: only tag, tag#id and #id are supported", s)
	}

	return Selector{Tag: strings.ToLower(tag), ID: id}, nil
}

func (s Selector) matches(tag string, attrs []html.Attribute) bool {
	if s.Tag != "" && s.Tag != tag {
		return false
	}
	if s.ID == "" {
		return true
	}
	for _, a := range attrs {
		if a.Namespace == "" && a.Key == "id" {
			return a.Val == s.ID
		}
	}
	return false
}

func (s Selector) String() string {
	if s.ID == "" {
		return s.Tag
	}
	return s.Tag + "#" + s.ID
}
