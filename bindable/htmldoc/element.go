package htmldoc

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/dombind/bindable"
)

// Element is a handle on one element node of a Document.
type Element struct {
	doc  *Document
	node *html.Node
}

var _ bindable.Element = (*Element)(nil)

func (d *Document) wrap(n *html.Node) *Element {
	return &Element{doc: d, node: n}
}

// Tag returns the lower-case tag name.
func (e *Element) Tag() string { return e.node.Data }

// Attr returns the value of the named attribute and whether it is set.
func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return getAttr(e.node, name)
}

// SetAttr sets an attribute. Attribute writes do not notify observers.
func (e *Element) SetAttr(name, value string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for i := range e.node.Attr {
		if e.node.Attr[i].Namespace == "" && e.node.Attr[i].Key == name {
			e.node.Attr[i].Val = value
			return nil
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
	return nil
}

// RemoveAttr removes an attribute if present.
func (e *Element) RemoveAttr(name string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		attrs = append(attrs, a)
	}
	e.node.Attr = attrs
}

// OuterHTML serialises the element and its subtree.
func (e *Element) OuterHTML() (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var sb strings.Builder
	if err := html.Render(&sb, e.node); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// String describes the element as tag#id.class1.class2.
func (e *Element) String() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(e.node.Data)
	if id, ok := getAttr(e.node, "id"); ok && id != "" {
		sb.WriteByte('#')
		sb.WriteString(id)
	}
	if class, ok := getAttr(e.node, "class"); ok {
		for _, c := range strings.Fields(class) {
			sb.WriteByte('.')
			sb.WriteString(c)
		}
	}
	return sb.String()
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
