package browser

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true, "xhr": true}
	tests := []struct {
		typ  string
		want bool
	}{
		{"Image", true},
		{"Font", true},
		{"Stylesheet", false},
		{"Media", false},
		{"XHR", true},
		{"Document", false},
	}
	for _, tt := range tests {
		if got := shouldBlock(set, tt.typ); got != tt.want {
			t.Errorf("shouldBlock(%q): got %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestManager_Defaults(t *testing.T) {
	m := NewManager(Config{})
	if m.cfg.NavTimeout != 30*time.Second || m.cfg.Logger == nil {
		t.Errorf("defaults: got %+v", m.cfg)
	}
	if m.Browser() != nil {
		t.Error("browser before Start")
	}
}

func TestManager_ClosedRefusesStart(t *testing.T) {
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}

func TestOpenTab_NotStarted(t *testing.T) {
	if _, err := OpenTab(context.Background(), NewManager(Config{}), "about:blank"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("got %v, want ErrNotStarted", err)
	}
}
