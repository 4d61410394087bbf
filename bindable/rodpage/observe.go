package rodpage

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/hazyhaar/dombind/bindable"
	"github.com/hazyhaar/dombind/bindable/internal/notify"
)

type subscription struct {
	page *Page
	id   string
	root *Element // nil: document element
	n    *notify.Notifier
	once sync.Once
	done chan struct{}
}

// Observe injects a MutationObserver on root (nil: the document element)
// watching child-list changes in its subtree. Attribute changes are not
// observed. Notifications are debounced and delivered on a notifier
// goroutine; cancelling ctx closes the subscription.
func (p *Page) Observe(ctx context.Context, root bindable.Element, onChange func()) (bindable.Subscription, error) {
	var rel *Element
	if root != nil {
		el, ok := root.(*Element)
		if !ok || el.page != p {
			return nil, ErrForeignElement
		}
		rel = el
	}

	p.mu.Lock()
	if err := p.ensureListener(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.seq++
	sub := &subscription{
		page: p,
		id:   "s" + strconv.Itoa(p.seq),
		root: rel,
		done: make(chan struct{}),
	}
	sub.n = notify.New(p.debounce, func(count int) {
		p.logger.Debug("rodpage: delivering mutations", "subscription", sub.id, "count", count)
		onChange()
	})
	p.subs[sub.id] = sub
	p.mu.Unlock()

	var err error
	if rel == nil {
		_, err = p.page.Context(ctx).Eval(observeScript(BindingName, false), sub.id)
	} else {
		_, err = rel.el.Context(ctx).Eval(observeScript(BindingName, true), sub.id)
	}
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("rodpage: inject observer: %w", err)
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Close disconnects the in-page observer and stops deliveries.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		p := s.page
		p.mu.Lock()
		delete(p.subs, s.id)
		p.mu.Unlock()
		s.n.Close()
		close(s.done)

		if _, e := p.page.Eval(disconnectScript, s.id); e != nil {
			p.logger.Debug("rodpage: disconnect observer", "subscription", s.id, "error", e)
			err = e
		}
	})
	return err
}

// observeScript returns the function installed for one subscription. With
// onElement it runs with this bound to the root element; otherwise it
// observes document.documentElement. It takes the subscription id and
// reports it through the binding on every batch that adds or removes nodes.
func observeScript(binding string, onElement bool) string {
	target := "document.documentElement"
	if onElement {
		target = "this"
	}
	return fmt.Sprintf(`function (id) {
	const root = %s;
	const obs = new MutationObserver((records) => {
		for (const r of records) {
			if (r.type === 'childList' && (r.addedNodes.length || r.removedNodes.length)) {
				window[%q](id);
				return;
			}
		}
	});
	obs.observe(root, { childList: true, subtree: true });
	(window.__dombind_observers = window.__dombind_observers || {})[id] = obs;
}`, target, binding)
}

const disconnectScript = `function (id) {
	const all = window.__dombind_observers || {};
	if (all[id]) { all[id].disconnect(); delete all[id]; }
}`
