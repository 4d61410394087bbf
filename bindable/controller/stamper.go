package controller

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/hazyhaar/dombind/bindable"
)

// ErrMissingAttr is returned when a required attribute is absent.
var ErrMissingAttr = errors.New("controller: missing required attribute")

// Stamp is the controller a Stamper builds.
type Stamp struct {
	Element bindable.Element
	Attrs   map[string]string
}

// Stamper writes a fixed set of attributes onto each bound element.
type Stamper struct {
	Require []string
	Attrs   map[string]string
}

// Factory returns the bindable factory for this stamper.
func (s *Stamper) Factory() bindable.Factory[*Stamp] {
	return s.Build
}

// Build checks the required attributes then writes Attrs in key order.
func (s *Stamper) Build(_ context.Context, el bindable.Element) (*Stamp, error) {
	for _, name := range s.Require {
		if _, ok := el.Attr(name); !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingAttr, name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(s.Attrs)) {
		if err := el.SetAttr(name, s.Attrs[name]); err != nil {
			return nil, fmt.Errorf("controller: set %s: %w", name, err)
		}
	}
	return &Stamp{Element: el, Attrs: s.Attrs}, nil
}
