package rewrite

import (
	"strings"

	"golang.org/x/net/html"
)

// Element is a matched start tag as seen by an ElementHandler.
type Element struct {
	tag          string
	attrs        []html.Attribute
	attrsChanged bool
	innerContent *string
}

// TagName returns the lower-cased tag name.
func (e *Element) TagName() string {
	return e.tag
}

// GetAttribute returns the value of the named attribute and whether it is present.
func (e *Element) GetAttribute(name string) (string, bool) {
	for _, a := range e.attrs {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttribute sets the named attribute, adding it if missing.
func (e *Element) SetAttribute(name, value string) {
	e.attrsChanged = true
	for i, a := range e.attrs {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			e.attrs[i].Val = value
			return
		}
	}
	e.attrs = append(e.attrs, html.Attribute{Key: strings.ToLower(name), Val: value})
}

// SetInnerContent replaces everything between the start and end tag with
// text. The text is escaped, never interpreted as markup.
func (e *Element) SetInnerContent(text string) {
	e.innerContent = &text
}

// ElementHandler is called for every element matching its selector.
type ElementHandler interface {
	Element(el *Element)
}

// InnerContentRewriter replaces the inner content of matched elements.
type InnerContentRewriter struct {
	Content string
}

func (r InnerContentRewriter) Element(el *Element) {
	el.SetInnerContent(r.Content)
}

// AttributeRewriter changes an attribute of matched elements. Elements that
// lack the attribute, or carry it empty, are left alone.
type AttributeRewriter struct {
	Name  string
	Value string
}

func (r AttributeRewriter) Element(el *Element) {
	if v, ok := el.GetAttribute(r.Name); ok && v != "" {
		el.SetAttribute(r.Name, r.Value)
	}
}
