package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxLogs = 1000

// Server is an in-memory tracker double serving the REST endpoints the
// load scenarios call
type Server struct {
	config     *Config
	store      *Store
	log        *zap.Logger
	router     *chi.Mux
	httpServer *http.Server
	listener   net.Listener
	logs       []RequestLog
	logsMutex  sync.RWMutex
}

// NewServer creates a tracker double. A nil logger discards.
func NewServer(config *Config, log *zap.Logger) *Server {
	if config.Host == "" {
		config.Host = DefaultHost
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		config: config,
		store:  NewStore(config.ProjectShort),
		log:    log,
		logs:   make([]RequestLog, 0),
	}
	for i := 1; i <= config.SeedIssues; i++ {
		s.store.CreateIssue(fmt.Sprintf("Seeded issue %d", i), "Created at startup", "0-0")
	}
	s.router = s.routes()
	return s
}

// Handler returns the router, for use with httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store returns the backing store
func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)
	r.Use(s.latency)
	r.Use(s.randomFailure)
	r.Use(s.requireToken)

	r.Route("/api", func(r chi.Router) {
		r.Post("/users/me/drafts", s.handleCreateDraft)
		r.Post("/users/me/drafts/{id}", s.handleUpdateDraft)
		r.Post("/issues", s.handleCreateIssue)
		r.Get("/issues/{id}", s.handleIssue)
		r.Get("/sortedIssues", s.handleSortedIssues)
		r.Post("/issuesGetter", s.handleIssuesGetter)
		r.Post("/issuesGetter/count", s.handleIssuesCount)
		r.Post("/commands/assist", s.handleAssist)
		r.Post("/commands", s.handleCommand)
		r.Post("/search/assist", s.handleAssist)
	})
	r.Route("/hub/api/rest", func(r chi.Router) {
		r.Post("/users", s.handleCreateUser)
		r.Post("/users/{id}/permanenttokens", s.handleCreateToken)
		r.Post("/users/{id}/permanenttokens/", s.handleCreateToken)
	})
	return r
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tracker double: %w", err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.router}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("tracker double failed", zap.Error(err))
		}
	}()
	s.log.Info("tracker double listening", zap.String("addr", s.GetAddress()))
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// GetAddress returns the server base URL
func (s *Server) GetAddress() string {
	if s.listener != nil {
		return "http://" + s.listener.Addr().String()
	}
	return fmt.Sprintf("http://%s:%d", s.config.Host, s.config.Port)
}

// Middleware

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if !s.config.Logging {
			return
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		entry := RequestLog{
			Timestamp: start,
			Method:    r.Method,
			Path:      r.URL.Path,
			Route:     route,
			Status:    rec.status,
			Duration:  time.Since(start),
		}
		s.logRequest(entry)
		s.log.Debug("request",
			zap.String("method", entry.Method),
			zap.String("path", entry.Path),
			zap.Int("status", entry.Status),
			zap.Duration("duration", entry.Duration))
	})
}

// latency delays every call by 80-120% of the configured delay
func (s *Server) latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.Delay > 0 {
			jitter := 0.8 + rand.Float64()*0.4
			delay := time.Duration(float64(s.config.Delay) * jitter * float64(time.Millisecond))
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) randomFailure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.FailRate > 0 && rand.Float64() < s.config.FailRate {
			writeError(w, http.StatusServiceUnavailable, "simulated failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// caller names the user behind the request token, "admin" for tokens the
// double did not issue
func (s *Server) caller(r *http.Request) string {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if name, ok := s.store.TokenOwner(token); ok {
		return name
	}
	return "admin"
}

// Handlers

type issueContent struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Project     struct {
		ID string `json:"id"`
	} `json:"project"`
}

type idRef struct {
	ID string `json:"id"`
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"id": s.store.CreateDraft(), "$type": "IssueDraft"})
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var body issueContent
	if !decodeBody(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.UpdateDraft(id, body.Summary, body.Description, body.Project.ID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "$type": "IssueDraft"})
}

func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	var (
		issue Issue
		err   error
	)
	if draftID := r.URL.Query().Get("draftId"); draftID != "" {
		issue, err = s.store.PromoteDraft(draftID)
	} else {
		var body issueContent
		if !decodeBody(w, r, &body) {
			return
		}
		issue, err = s.store.CreateIssue(body.Summary, body.Description, body.Project.ID)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": issue.ID, "idReadable": issue.IDReadable, "$type": "Issue"})
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	issue, ok := s.store.Issue(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Entity with id "+chi.URLParam(r, "id")+" not found")
		return
	}
	writeJSON(w, http.StatusOK, issueView(issue))
}

func (s *Server) handleSortedIssues(w http.ResponseWriter, r *http.Request) {
	top, err := strconv.Atoi(r.URL.Query().Get("topRoot"))
	if err != nil {
		top = 0
	}
	issues := s.store.Sorted(r.URL.Query().Get("query"), top)
	tree := make([]idRef, 0, len(issues))
	for _, issue := range issues {
		tree = append(tree, idRef{ID: issue.ID})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tree": tree, "$type": "IssueTreeWrapper"})
}

func (s *Server) handleIssuesGetter(w http.ResponseWriter, r *http.Request) {
	var refs []idRef
	if !decodeBody(w, r, &refs) {
		return
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	issues := s.store.Issues(ids)
	out := make([]map[string]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issueView(issue))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleIssuesCount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": s.store.Count(body.Query), "$type": "IssueCountResponse"})
}

func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
		Caret int    `json:"caret"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": body.Query, "caret": body.Caret, "suggestions": []any{}})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query   string  `json:"query"`
		Comment string  `json:"comment"`
		Issues  []idRef `json:"issues"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if len(body.Issues) == 0 {
		writeError(w, http.StatusBadRequest, "no issues selected")
		return
	}
	caller := s.caller(r)
	for _, ref := range body.Issues {
		if err := s.store.ApplyCommand(ref.ID, body.Query, body.Comment, caller); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": body.Query, "$type": "CommandList"})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string `json:"name"`
		Details []struct {
			Email struct {
				Email string `json:"email"`
			} `json:"email"`
		} `json:"details"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if len(body.Details) == 0 {
		writeError(w, http.StatusBadRequest, "user details are required")
		return
	}
	user, err := s.store.CreateUser(body.Details[0].Email.Email, body.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": user.ID, "type": "user"})
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.store.IssueToken(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func issueView(issue Issue) map[string]string {
	return map[string]string{
		"id":          issue.ID,
		"idReadable":  issue.IDReadable,
		"summary":     issue.Summary,
		"description": issue.Description,
		"$type":       "Issue",
	}
}

// Helpers

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": http.StatusText(status), "error_description": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// logRequest adds a request to the log
func (s *Server) logRequest(log RequestLog) {
	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.logs = append(s.logs, log)

	// Keep only the most recent entries
	if len(s.logs) > maxLogs {
		s.logs = s.logs[len(s.logs)-maxLogs:]
	}
}

// GetLogs returns all logged requests
func (s *Server) GetLogs() []RequestLog {
	s.logsMutex.RLock()
	defer s.logsMutex.RUnlock()

	logs := make([]RequestLog, len(s.logs))
	copy(logs, s.logs)
	return logs
}

// ClearLogs clears all logged requests
func (s *Server) ClearLogs() {
	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.logs = make([]RequestLog, 0)
}
