package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"

	"github.com/engram-dev/engram/pkg/agent/tool"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/engram-dev/engram/pkg/usecase"
	"github.com/engram-dev/engram/pkg/utils/errutil"
	"github.com/engram-dev/engram/pkg/utils/logging"
)

// maxRequestBody bounds a tool invocation payload.
const maxRequestBody = 1 << 20

type Server struct {
	router     *chi.Mux
	dispatcher *tool.Dispatcher
	uc         *usecase.UseCases
}

type Options func(*Server)

func New(dispatcher *tool.Dispatcher, uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:     r,
		dispatcher: dispatcher,
		uc:         uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tools", s.listToolsHandler)
		r.Post("/tools/{operation}", s.executeToolHandler)

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Get("/memories", s.listMemoriesHandler)
			r.Get("/audit", s.listAuditHandler)
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// listToolsHandler serves the registered tool specs.
func (s *Server) listToolsHandler(w http.ResponseWriter, r *http.Request) {
	specs := s.dispatcher.Specs()
	items := make([]map[string]any, len(specs))
	for i, spec := range specs {
		items[i] = map[string]any{
			"name":        spec.Name,
			"description": spec.Description,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": items})
}

// executeToolHandler runs one tool operation. The response body is the
// dispatcher envelope; the HTTP status follows the error category.
func (s *Server) executeToolHandler(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}

	args := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "request body must be a JSON object"), http.StatusBadRequest)
			return
		}
	}

	envelope := s.dispatcher.Execute(r.Context(), operation, args)

	status := http.StatusOK
	if success, _ := envelope["success"].(bool); !success {
		category, _ := envelope["errorCategory"].(string)
		status = types.ErrorCategory(category).HTTPStatus()
	}

	writeJSON(w, status, envelope)
}

// listMemoriesHandler serves the tenant's memories without touching
// usage counters: listing is administrative, not agent usage.
func (s *Server) listMemoriesHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, err := types.NormalizeTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	memories, err := s.uc.Memory.List(r.Context(), tenantID)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"memories": memories,
		"count":    len(memories),
	})
}

func (s *Server) listAuditHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, err := types.NormalizeTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	items, total, err := s.uc.Audit.List(r.Context(), tenantID, limit, offset)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Default().Error("failed to encode response", "error", err.Error())
	}
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
