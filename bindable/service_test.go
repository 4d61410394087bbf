package bindable_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/dombind/bindable"
	"github.com/hazyhaar/dombind/bindable/event"
)

var errBoom = errors.New("boom")

func testRegistry(t *testing.T, opts ...bindable.Option) *bindable.Registry {
	t.Helper()
	d := parse(t, scenario)
	a := newBinder(t, d, bindable.Config{Name: "Widget", Selector: ".widget", DisableLogging: true}, &widgets{}, opts...)
	b := newBinder(t, d, bindable.Config{Name: "List", Selector: "#list", DisableLogging: true}, &widgets{}, opts...)
	reg, err := bindable.NewRegistry(a, b)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func do(t *testing.T, h http.Handler, method, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestHTTP_ListAndScan(t *testing.T) {
	h := bindable.Handler(testRegistry(t))

	var health map[string]string
	if code := do(t, h, http.MethodGet, "/health", &health); code != 200 || health["status"] != "ok" {
		t.Errorf("health: %d %v", code, health)
	}

	var infos []bindable.BinderInfo
	if code := do(t, h, http.MethodGet, "/binders", &infos); code != 200 {
		t.Fatalf("list: status %d", code)
	}
	if len(infos) != 2 || infos[0] != (bindable.BinderInfo{Name: "Widget", Selector: ".widget"}) {
		t.Errorf("list: got %+v", infos)
	}

	var scan event.Scan
	if code := do(t, h, http.MethodPost, "/binders/Widget/scan", &scan); code != 200 {
		t.Fatalf("scan: status %d", code)
	}
	if scan.Binder != "Widget" || scan.Bound != 1 || scan.Skipped != 0 || !strings.HasPrefix(scan.ID, "scn_") {
		t.Errorf("scan: got %+v", scan)
	}

	// Idempotent: nothing left to bind.
	do(t, h, http.MethodPost, "/binders/Widget/scan", &scan)
	if scan.Bound != 0 {
		t.Errorf("second scan bound %d, want 0", scan.Bound)
	}

	var errBody map[string]string
	if code := do(t, h, http.MethodPost, "/binders/Nope/scan", &errBody); code != http.StatusNotFound {
		t.Errorf("unknown binder: status %d, want 404", code)
	}
	if !strings.Contains(errBody["error"], "unknown binder") {
		t.Errorf("error body: %v", errBody)
	}
}

func TestHTTP_ScanAll(t *testing.T) {
	h := bindable.Handler(testRegistry(t))
	var scans []event.Scan
	if code := do(t, h, http.MethodPost, "/scan", &scans); code != 200 {
		t.Fatalf("status %d", code)
	}
	if len(scans) != 2 || scans[0].Binder != "Widget" || scans[1].Binder != "List" || scans[1].Bound != 1 {
		t.Errorf("scans: got %+v", scans)
	}
}

func TestHTTP_History(t *testing.T) {
	log, err := bindable.OpenSQLiteSink(filepath.Join(t.TempDir(), "events.db"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	reg := testRegistry(t, bindable.WithScanHook(bindable.SinkScans(log, nil)))
	h := bindable.Handler(reg, bindable.WithHistory(log))

	do(t, h, http.MethodPost, "/binders/Widget/scan", nil)
	do(t, h, http.MethodPost, "/binders/Widget/scan", nil)

	var scans []event.Scan
	if code := do(t, h, http.MethodGet, "/binders/Widget/scans?limit=5", &scans); code != 200 {
		t.Fatalf("status %d", code)
	}
	if len(scans) != 2 {
		t.Fatalf("history: got %d scans, want 2", len(scans))
	}
	if code := do(t, h, http.MethodGet, "/binders/Nope/scans", nil); code != http.StatusNotFound {
		t.Errorf("unknown binder history: status %d, want 404", code)
	}
}

func TestHTTP_NoHistoryRoute(t *testing.T) {
	h := bindable.Handler(testRegistry(t))
	if code := do(t, h, http.MethodGet, "/binders/Widget/scans", nil); code != http.StatusNotFound {
		t.Errorf("status %d, want 404 without history", code)
	}
}

func mcpSession(t *testing.T, reg *bindable.Registry, opts ...bindable.ServiceOption) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "dombind-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	bindable.RegisterMCP(srv, reg, opts...)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, s *mcp.ClientSession, name string, args any) (string, error) {
	t.Helper()
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := res.GetError(); err != nil {
		return "", err
	}
	return res.Content[0].(*mcp.TextContent).Text, nil
}

func TestMCP_ListAndScan(t *testing.T) {
	s := mcpSession(t, testRegistry(t))

	text, err := callTool(t, s, "dombind_list", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	var infos []bindable.BinderInfo
	json.Unmarshal([]byte(text), &infos)
	if len(infos) != 2 || infos[1].Name != "List" {
		t.Errorf("list: got %s", text)
	}

	text, err = callTool(t, s, "dombind_scan", map[string]any{"binder": "Widget"})
	if err != nil {
		t.Fatal(err)
	}
	var scan event.Scan
	json.Unmarshal([]byte(text), &scan)
	if scan.Binder != "Widget" || scan.Bound != 1 {
		t.Errorf("scan: got %s", text)
	}

	text, err = callTool(t, s, "dombind_scan", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	var all []event.Scan
	json.Unmarshal([]byte(text), &all)
	if len(all) != 2 || all[0].Bound != 0 || all[1].Bound != 1 {
		t.Errorf("scan all: got %s", text)
	}

	if _, err := callTool(t, s, "dombind_scan", map[string]any{"binder": "Nope"}); err == nil {
		t.Error("unknown binder should be a tool error")
	}
}

func TestMCP_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := mcpSession(t, testRegistry(t), bindable.WithServiceLogger(logger))

	if _, err := callTool(t, s, "dombind_list", map[string]any{}); err != nil {
		t.Fatal(err)
	}
	var line struct {
		Op        string `json:"op"`
		Transport string `json:"transport"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log %q: %v", buf.String(), err)
	}
	if line.Op != "list" || line.Transport != "mcp" || len(line.RequestID) != 36 {
		t.Errorf("log: got %+v, want list over mcp with a UUID request id", line)
	}
}

func TestFromReport(t *testing.T) {
	d := parse(t, scenario)
	w := &widgets{fail: map[string]error{"fresh": errBoom}}
	b := newBinder(t, d, bindable.Config{Selector: ".widget", DisableLogging: true}, w)

	rep, _ := b.BindAll(context.Background())
	ev := bindable.FromReport(rep)
	if ev.Binder != "widget" || ev.Failed != 1 || ev.Passes != 1 || ev.Matched != 1 {
		t.Errorf("event: got %+v", ev)
	}
	if len(ev.Failures) != 1 || ev.Failures[0].Element != "div#fresh.widget" || ev.Failures[0].Error != "boom" {
		t.Errorf("failures: got %+v", ev.Failures)
	}
}
