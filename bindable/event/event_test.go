package event

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecode_Bound(t *testing.T) {
	data, _ := json.Marshal(Envelope{Type: TypeBound, Data: Bound{
		ID: "b1", Binder: "Widget", Element: "div#w1.widget", Timestamp: 1708700000000,
	}})

	typ, v, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if typ != TypeBound {
		t.Fatalf("type: got %q, want %q", typ, TypeBound)
	}
	b, ok := v.(*Bound)
	if !ok {
		t.Fatalf("value: got %T, want *Bound", v)
	}
	if b.Element != "div#w1.widget" || b.Binder != "Widget" {
		t.Errorf("decoded: got %+v", b)
	}
}

func TestDecode_Scan(t *testing.T) {
	data, _ := json.Marshal(Envelope{Type: TypeScan, Data: Scan{
		ID: "s1", Binder: "Widget", Bound: 2, Failed: 1,
		Failures: []Failure{{Element: "div#x", Error: "boom"}},
	}})

	_, v, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	s := v.(*Scan)
	if s.Bound != 2 || len(s.Failures) != 1 || s.Failures[0].Error != "boom" {
		t.Errorf("decoded: got %+v", s)
	}
}

func TestDecode_UnknownType(t *testing.T) {
	_, _, err := Decode([]byte(`{"type":"mystery","data":{}}`))
	var ute *UnknownTypeError
	if !errors.As(err, &ute) || ute.Type != "mystery" {
		t.Errorf("got %v, want UnknownTypeError", err)
	}
}
