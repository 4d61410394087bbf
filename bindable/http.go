package bindable

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/dombind/kit"
)

// Handler exposes the registry over HTTP:
//
//	GET  /health
//	GET  /binders
//	POST /binders/{name}/scan
//	GET  /binders/{name}/scans   (with WithHistory)
//	POST /scan
//
// A scan request for a binder that is already scanning waits for that scan
// and answers with its report, coalesced set.
func Handler(reg *Registry, opts ...ServiceOption) http.Handler {
	s := newService(reg, opts)

	list := s.endpoint("list", s.list)
	scan := s.endpoint("scan", s.scan)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := kit.WithTransport(r.Context(), "http")
			ctx = kit.WithRequestID(ctx, middleware.GetReqID(r.Context()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/binders", func(w http.ResponseWriter, r *http.Request) {
		resp, _ := list(r.Context(), nil)
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/binders/{name}/scan", func(w http.ResponseWriter, r *http.Request) {
		resp, err := scan(r.Context(), &scanRequest{Binder: chi.URLParam(r, "name")})
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/scan", func(w http.ResponseWriter, r *http.Request) {
		resp, err := scan(r.Context(), &scanRequest{})
		if err != nil {
			// Partial results are still reported.
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "scans": resp})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	if s.history != nil {
		history := s.endpoint("history", s.recentScans)
		r.Get("/binders/{name}/scans", func(w http.ResponseWriter, r *http.Request) {
			resp, err := history(r.Context(), &historyRequest{
				Binder: chi.URLParam(r, "name"),
				Limit:  queryInt(r, "limit", 20),
			})
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, resp)
		})
	}

	return r
}

func statusFor(err error) int {
	if errors.Is(err, ErrUnknownName) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
