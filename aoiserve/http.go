package aoiserve

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/webaoi/kit"
)

// Handler returns the HTTP API:
//
//	GET  /healthz
//	GET  /api/sessions?mode=&limit=
//	GET  /api/sessions/{id}/export
//	GET  /api/sessions/{id}/events?name=&limit=
//	POST /api/resolve
//	*    /mcp                          MCP streamable HTTP
func (s *Service) Handler(mcpSrv *mcp.Server) http.Handler {
	ep := s.endpoints()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			s.serve(w, r, ep.listSessions, ListSessionsRequest{
				Mode:  r.URL.Query().Get("mode"),
				Limit: queryInt(r, "limit", 0),
			})
		})
		r.Get("/{id}/export", func(w http.ResponseWriter, r *http.Request) {
			s.serve(w, r, ep.export, ExportRequest{SessionID: chi.URLParam(r, "id")})
		})
		r.Get("/{id}/events", func(w http.ResponseWriter, r *http.Request) {
			s.serve(w, r, ep.events, EventsRequest{
				SessionID: chi.URLParam(r, "id"),
				Name:      r.URL.Query().Get("name"),
				Limit:     queryInt(r, "limit", 0),
			})
		})
	})

	r.Post("/api/resolve", func(w http.ResponseWriter, r *http.Request) {
		var req ResolveHTMLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.serve(w, r, ep.resolveHTML, req)
	})

	if mcpSrv != nil {
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))
	}
	return r
}

func (s *Service) serve(w http.ResponseWriter, r *http.Request, e kit.Endpoint, req any) {
	call := kit.Call{Transport: "http", RequestID: middleware.GetReqID(r.Context())}
	if sc, ok := req.(kit.SessionScoped); ok {
		call.SessionID = sc.Session()
	}
	resp, err := e(kit.WithCall(r.Context(), call), req)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
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
