// Package controller provides the built-in controllers the dombind CLI
// binds to configured selectors.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/dombind/bindable"
	"github.com/hazyhaar/dombind/bindable/event"
	"github.com/hazyhaar/dombind/idgen"
)

// ErrNoHTML is returned when the host element cannot render its markup.
var ErrNoHTML = errors.New("controller: element does not expose outer HTML")

// OuterHTMLer is implemented by host elements that can render their markup.
type OuterHTMLer interface {
	OuterHTML() (string, error)
}

// Emitter receives the bound events of a Recorder.
type Emitter interface {
	SendBound(ctx context.Context, ev event.Bound) error
}

// Record is the controller a Recorder builds: the captured element.
type Record struct {
	Event event.Bound
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Binder   string
	Selector string
	PageURL  string
	Emitter  Emitter
	Policy   *bluemonday.Policy // default: bluemonday.UGCPolicy()
	Logger   *slog.Logger
}

// Recorder captures each bound element as sanitised HTML and Markdown.
type Recorder struct {
	cfg       RecorderConfig
	converter *converter.Converter
	newID     idgen.Generator
}

// NewRecorder creates a Recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.Policy == nil {
		cfg.Policy = bluemonday.UGCPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Recorder{
		cfg: cfg,
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		newID: idgen.BoundID,
	}
}

// Factory returns the bindable factory for this recorder.
func (r *Recorder) Factory() bindable.Factory[*Record] {
	return r.Build
}

// Build captures el and emits it. Only failing to read the markup fails
// the construction. Emission is best-effort: a sink error is logged and the
// element is still bound, so healthy sinks never see it twice.
func (r *Recorder) Build(ctx context.Context, el bindable.Element) (*Record, error) {
	src, ok := el.(OuterHTMLer)
	if !ok {
		return nil, ErrNoHTML
	}
	raw, err := src.OuterHTML()
	if err != nil {
		return nil, fmt.Errorf("controller: outer html: %w", err)
	}

	clean := r.cfg.Policy.Sanitize(raw)
	md, err := r.markdown(clean)
	if err != nil {
		// Markdown is best-effort; the sanitised HTML is still recorded.
		r.cfg.Logger.Warn("controller: markdown conversion failed", "element", el.String(), "error", err)
		md = ""
	}

	rec := &Record{Event: event.Bound{
		ID:        r.newID(),
		Binder:    r.cfg.Binder,
		Selector:  r.cfg.Selector,
		PageURL:   r.cfg.PageURL,
		Element:   el.String(),
		HTML:      clean,
		Markdown:  md,
		Timestamp: time.Now().UnixMilli(),
	}}

	if r.cfg.Emitter != nil {
		if err := r.cfg.Emitter.SendBound(ctx, rec.Event); err != nil {
			r.cfg.Logger.Warn("controller: bound event not delivered",
				"binder", r.cfg.Binder, "element", rec.Event.Element, "id", rec.Event.ID, "error", err)
		}
	}
	return rec, nil
}

func (r *Recorder) markdown(clean string) (string, error) {
	if r.cfg.PageURL == "" {
		return r.converter.ConvertString(clean)
	}
	return r.converter.ConvertString(clean, converter.WithDomain(r.cfg.PageURL))
}
