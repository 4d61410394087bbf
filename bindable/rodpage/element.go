package rodpage

import (
	"fmt"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/dombind/bindable"
)

// Element is a bindable.Element backed by a remote DOM element.
type Element struct {
	page *Page
	el   *rod.Element
	desc string
}

var _ bindable.Element = (*Element)(nil)

// Rod returns the underlying rod element.
func (e *Element) Rod() *rod.Element { return e.el }

// Attr reads the attribute from the live DOM. A detached element or a
// protocol error reads as absent.
func (e *Element) Attr(name string) (string, bool) {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

// SetAttr writes the attribute in the live DOM.
func (e *Element) SetAttr(name, value string) error {
	if _, err := e.el.Eval(`function (n, v) { this.setAttribute(n, v) }`, name, value); err != nil {
		return fmt.Errorf("rodpage: set %s: %w", name, err)
	}
	return nil
}

// OuterHTML returns the element's serialised markup.
func (e *Element) OuterHTML() (string, error) {
	s, err := e.el.HTML()
	if err != nil {
		return "", fmt.Errorf("rodpage: outer html: %w", err)
	}
	return s, nil
}

// String describes the element as tag#id.class, resolved once.
func (e *Element) String() string {
	if e.desc != "" {
		return e.desc
	}
	res, err := e.el.Eval(describeJS)
	if err != nil {
		return "element"
	}
	e.desc = res.Value.Str()
	return e.desc
}

const describeJS = `function () {
	let s = this.tagName.toLowerCase();
	if (this.id) s += '#' + this.id;
	for (const c of this.classList) s += '.' + c;
	return s;
}`
