package bindable

import (
	"reflect"
	"testing"
)

func TestSplitSelectorList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{".widget", []string{".widget"}},
		{".a, .b", []string{".a", ".b"}},
		{" .a ,, .b ,", []string{".a", ".b"}},
		{`:is(.a, .b) > p, div`, []string{":is(.a, .b) > p", "div"}},
		{`[data-x="a,b"], span`, []string{`[data-x="a,b"]`, "span"}},
		{`[data-x='a,b']`, []string{`[data-x='a,b']`}},
		{`.a\,b, i`, []string{`.a\,b`, "i"}},
		{"", nil},
	}
	for _, tt := range tests {
		got := SplitSelectorList(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitSelectorList(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExcludeMarked(t *testing.T) {
	got := ExcludeMarked(".a, ul > li", "data-bound", "data-no-bind")
	want := `.a:not([data-bound="true"]):not([data-no-bind]), ul > li:not([data-bound="true"]):not([data-no-bind])`
	if got != want {
		t.Errorf("ExcludeMarked:\n got %q\nwant %q", got, want)
	}
}

func TestExcludeMarked_CustomMarkers(t *testing.T) {
	got := ExcludeMarked("button", "data-ctl", "data-skip")
	want := `button:not([data-ctl="true"]):not([data-skip])`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
