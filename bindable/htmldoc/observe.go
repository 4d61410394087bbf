package htmldoc

import (
	"context"
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/dombind/bindable"
	"github.com/hazyhaar/dombind/bindable/internal/notify"
)

type subscription struct {
	doc      *Document
	root     *html.Node
	onChange func()
	n        *notify.Notifier // nil with sync delivery
	done     chan struct{}
	once     sync.Once
}

// Observe calls onChange after child-list mutations in root's subtree.
// A nil root observes the <html> element. Cancelling ctx closes the
// subscription.
func (d *Document) Observe(ctx context.Context, root bindable.Element, onChange func()) (bindable.Subscription, error) {
	var rn *html.Node
	if root == nil {
		d.mu.Lock()
		rn = d.documentElement()
		d.mu.Unlock()
		if rn == nil {
			rn = d.root
		}
	} else {
		el, ok := root.(*Element)
		if !ok || el.doc != d {
			return nil, ErrForeignElement
		}
		rn = el.node
	}

	sub := &subscription{
		doc:      d,
		root:     rn,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	if !d.opts.sync {
		sub.n = notify.New(d.opts.debounce, func(count int) {
			d.logger.Debug("htmldoc: delivering mutations", "count", count)
			onChange()
		})
	}

	d.mu.Lock()
	d.subs[sub] = struct{}{}
	d.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub, nil
}

// Close ends the subscription. No delivery is dispatched after Close
// returns; one already dispatched may still run.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.doc.mu.Lock()
		delete(s.doc.subs, s)
		s.doc.mu.Unlock()
		if s.n != nil {
			s.n.Close()
		}
		close(s.done)
	})
	return nil
}

func (s *subscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// affected returns the subscriptions whose root contains parent.
// The caller holds d.mu.
func (d *Document) affected(parent *html.Node) []*subscription {
	var out []*subscription
	for s := range d.subs {
		if contains(s.root, parent) {
			out = append(out, s)
		}
	}
	return out
}

// deliver notifies subs of count mutations. The caller must not hold d.mu.
func (d *Document) deliver(subs []*subscription, count int) {
	if count <= 0 {
		return
	}
	for _, s := range subs {
		if s.n == nil {
			if !s.closed() {
				s.onChange()
			}
			continue
		}
		for i := 0; i < count; i++ {
			s.n.Signal()
		}
	}
}

func contains(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}
