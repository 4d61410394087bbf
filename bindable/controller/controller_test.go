package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hazyhaar/dombind/bindable"
	"github.com/hazyhaar/dombind/bindable/event"
	"github.com/hazyhaar/dombind/bindable/htmldoc"
)

const page = `<html><body>
<div class="card" id="c1"><p>Hello <b>world</b></p><script>alert(1)</script></div>
<div class="card" id="c2"><a href="/x" onclick="steal()">link</a></div>
</body></html>`

type collector struct {
	events []event.Bound
	err    error
}

func (c *collector) SendBound(_ context.Context, ev event.Bound) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

func parse(t *testing.T) *htmldoc.Document {
	t.Helper()
	d, err := htmldoc.ParseString(page)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestRecorder_EmitsSanitisedEvents(t *testing.T) {
	doc := parse(t)
	sink := &collector{}
	rec := NewRecorder(RecorderConfig{Binder: "Card", Selector: ".card", PageURL: "https://example.com", Emitter: sink})

	b, err := bindable.New(doc, bindable.Config{Name: "Card", Selector: ".card", DisableLogging: true}, rec.Factory())
	if err != nil {
		t.Fatal(err)
	}
	rep, err := b.BindAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Bound != 2 || len(sink.events) != 2 {
		t.Fatalf("bound %d, events %d: want 2 and 2", rep.Bound, len(sink.events))
	}

	first := sink.events[0]
	if first.Element != "div#c1.card" || first.Binder != "Card" || first.Selector != ".card" {
		t.Errorf("event: got %+v", first)
	}
	if !strings.HasPrefix(first.ID, "bnd_") {
		t.Errorf("id: got %q, want bnd_ prefix", first.ID)
	}
	if strings.Contains(first.HTML, "<script") || strings.Contains(first.HTML, "alert") {
		t.Errorf("script not stripped: %s", first.HTML)
	}
	if !strings.Contains(first.Markdown, "**world**") {
		t.Errorf("markdown: got %q", first.Markdown)
	}
	if strings.Contains(sink.events[1].HTML, "onclick") {
		t.Errorf("event handler not stripped: %s", sink.events[1].HTML)
	}
	if first.Timestamp == 0 {
		t.Error("timestamp not set")
	}
}

func TestRecorder_FailingSinkDoesNotDuplicateEvents(t *testing.T) {
	doc := parse(t)
	healthy := &collector{}
	down := &collector{err: errors.New("webhook down")}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := bindable.NewRouter(quiet,
		bindable.NewCallbackSink(healthy.SendBound, nil),
		bindable.NewCallbackSink(down.SendBound, nil),
	)
	rec := NewRecorder(RecorderConfig{Binder: "Card", Selector: ".card", Emitter: router, Logger: quiet})

	b, _ := bindable.New(doc, bindable.Config{Selector: ".card", DisableLogging: true}, rec.Factory())
	for i := 0; i < 3; i++ {
		rep, err := b.BindAll(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if rep.Failed != 0 {
			t.Fatalf("scan %d: failed %d, want 0", i, rep.Failed)
		}
	}

	per := map[string]int{}
	for _, ev := range healthy.events {
		per[ev.Element]++
	}
	if len(healthy.events) != 2 || per["div#c1.card"] != 1 || per["div#c2.card"] != 1 {
		t.Fatalf("healthy sink got %d events %v, want one per element", len(healthy.events), per)
	}
	c1, _ := doc.Query("#c1")
	if v, _ := c1.Attr("data-bound"); v != "true" {
		t.Errorf("bound marker: got %q, want %q", v, "true")
	}
}

type bareElement struct{}

func (bareElement) Attr(string) (string, bool)  { return "", false }
func (bareElement) SetAttr(string, string) error { return nil }
func (bareElement) String() string               { return "bare" }

func TestRecorder_NoOuterHTML(t *testing.T) {
	rec := NewRecorder(RecorderConfig{})
	if _, err := rec.Build(context.Background(), bareElement{}); !errors.Is(err, ErrNoHTML) {
		t.Errorf("got %v, want ErrNoHTML", err)
	}
}

func TestStamper(t *testing.T) {
	doc, err := htmldoc.ParseString(`<body><button id="ok">a</button><button>b</button></body>`)
	if err != nil {
		t.Fatal(err)
	}
	s := &Stamper{Require: []string{"id"}, Attrs: map[string]string{"role": "button", "data-controller": "btn"}}
	b, _ := bindable.New(doc, bindable.Config{Selector: "button", DisableLogging: true}, s.Factory())

	rep, err := b.BindAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Bound != 1 || rep.Failed != 1 {
		t.Fatalf("bound %d failed %d, want 1 and 1", rep.Bound, rep.Failed)
	}
	if !errors.Is(rep.Failures()[0].Err, ErrMissingAttr) {
		t.Errorf("failure: got %v, want ErrMissingAttr", rep.Failures()[0].Err)
	}

	ok, _ := doc.Query("#ok")
	if v, _ := ok.Attr("role"); v != "button" {
		t.Errorf("role: got %q", v)
	}
	if v, _ := ok.Attr("data-controller"); v != "btn" {
		t.Errorf("data-controller: got %q", v)
	}
	if v, _ := ok.Attr("data-bound"); v != "true" {
		t.Errorf("bound marker: got %q", v)
	}
}
