// Package htmldoc is an in-process bindable.Document over a parsed HTML
// tree. Selectors are matched with cascadia; child-list mutations made
// through the Document notify observers the way a browser MutationObserver
// with {subtree: true, childList: true} does.
package htmldoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/dombind/bindable"
	"github.com/hazyhaar/dombind/bindable/internal/notify"
)

var (
	ErrNotFound       = errors.New("htmldoc: no matching element")
	ErrForeignElement = errors.New("htmldoc: element belongs to another document")
	ErrDetached       = errors.New("htmldoc: element is not attached")
)

// Document is a mutable HTML tree. All reads and writes go through its lock,
// so it is safe for concurrent use.
type Document struct {
	mu     sync.Mutex
	root   *html.Node
	subs   map[*subscription]struct{}
	opts   options
	logger *slog.Logger
}

var _ bindable.Document = (*Document)(nil)

// Option configures a Document.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	debounce notify.Config
	sync     bool
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDebounce batches mutation notifications: delivery waits for window
// without new mutations, or until maxBuffer mutations are pending.
func WithDebounce(window time.Duration, maxBuffer int) Option {
	return func(o *options) {
		o.debounce = notify.Config{Window: window, MaxBuffer: maxBuffer}
	}
}

// WithSyncDelivery delivers notifications inside the mutating call, right
// after the tree lock is released, instead of on a separate goroutine.
// Observers can then be re-entered by their own mutations.
func WithSyncDelivery() Option {
	return func(o *options) { o.sync = true }
}

// Parse reads an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Document{
		root:   root,
		subs:   make(map[*subscription]struct{}),
		opts:   o,
		logger: o.logger,
	}, nil
}

// ParseString is Parse over a string.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// QueryAll returns the elements matching selector in document order.
func (d *Document) QueryAll(ctx context.Context, selector string) ([]bindable.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes, err := d.match(selector)
	if err != nil {
		return nil, err
	}
	out := make([]bindable.Element, len(nodes))
	for i, n := range nodes {
		out[i] = d.wrap(n)
	}
	return out, nil
}

// Query returns the first element matching selector.
func (d *Document) Query(selector string) (*Element, error) {
	nodes, err := d.match(selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, selector)
	}
	return d.wrap(nodes[0]), nil
}

func (d *Document) match(selector string) ([]*html.Node, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: selector %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return cascadia.QueryAll(d.root, sel), nil
}

// Root returns the <html> element.
func (d *Document) Root() (*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.documentElement()
	if n == nil {
		return nil, fmt.Errorf("%w: <html>", ErrNotFound)
	}
	return d.wrap(n), nil
}

func (d *Document) documentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	return nil
}

// AppendHTML parses fragment in the context of parent and appends the
// resulting nodes to it. It returns the appended elements.
func (d *Document) AppendHTML(parent *Element, fragment string) ([]*Element, error) {
	if err := d.owns(parent); err != nil {
		return nil, err
	}

	d.mu.Lock()
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent.node)
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("htmldoc: parse fragment: %w", err)
	}
	var added []*Element
	for _, n := range nodes {
		parent.node.AppendChild(n)
		if n.Type == html.ElementNode {
			added = append(added, d.wrap(n))
		}
	}
	targets := d.affected(parent.node)
	d.mu.Unlock()

	d.deliver(targets, len(nodes))
	return added, nil
}

// Remove detaches el from the tree.
func (d *Document) Remove(el *Element) error {
	if err := d.owns(el); err != nil {
		return err
	}

	d.mu.Lock()
	parent := el.node.Parent
	if parent == nil {
		d.mu.Unlock()
		return ErrDetached
	}
	targets := d.affected(parent)
	parent.RemoveChild(el.node)
	d.mu.Unlock()

	d.deliver(targets, 1)
	return nil
}

// Render writes the current tree as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// String renders the tree, ignoring errors.
func (d *Document) String() string {
	var sb strings.Builder
	d.Render(&sb)
	return sb.String()
}

func (d *Document) owns(el *Element) error {
	if el == nil || el.doc != d {
		return ErrForeignElement
	}
	return nil
}
