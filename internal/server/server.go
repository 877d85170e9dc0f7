package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "upscan/docs" // swagger spec registration

	"upscan/internal/browser"
	"upscan/internal/config"
	"upscan/internal/history"
	"upscan/internal/interfaces"
	"upscan/internal/logging"
	"upscan/internal/scanner"
	"upscan/internal/scanner/upwork"
	"upscan/internal/settings"
	"upscan/internal/taskqueue"
)

// Server is the HTTP + WebSocket API surface for the scanner service.
type Server struct {
	cfg      Config
	queue    *taskqueue.Queue
	runs     *history.Store
	router   chi.Router
	upgrader websocket.Upgrader
	logger   interfaces.Logger
}

// NewServer builds the full pipeline: settings store, scanner registry
// with the Upwork strategy, run history and task queue.
func NewServer(cfg Config) (*Server, error) {
	if cfg.App == nil {
		cfg.App = config.FromEnv()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}

	open := cfg.OpenSession
	if open == nil {
		open = browser.Opener(cfg.App.BrowserRemoteURL, logger)
	}

	store := settings.NewStore(cfg.App.SettingsDir, logger)

	reg := scanner.NewRegistry()
	reg.Register("upwork", upwork.NewCreator(open, logger))

	runs, err := history.NewStore(cfg.App.StorageRoot, logger)
	if err != nil {
		return nil, err
	}

	queue := taskqueue.New(taskqueue.Config{
		MaxAttempts:    cfg.App.MaxAttempts,
		RetryDelay:     cfg.App.RetryDelay,
		AttemptTimeout: cfg.App.AttemptTimeout,
	}, reg, store, runs, logger)

	s := &Server{
		cfg:    cfg,
		queue:  queue,
		runs:   runs,
		router: chi.NewRouter(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Options("/scanners/{name}", s.optionsHandler("POST"))
	r.Options("/scanners/status/{taskID}", s.optionsHandler("GET"))
	r.Options("/scanners/{name}/runs", s.optionsHandler("GET"))
	r.Options("/tasks", s.optionsHandler("GET"))

	r.Post("/scanners/{name}", s.handleEnqueueScan)
	r.Get("/scanners/status/{taskID}", s.handleScanStatus)
	r.Get("/scanners/{name}/runs", s.handleListRuns)
	r.Get("/tasks", s.handleListTasks)

	// WebSocket: enqueue a scan and stream its lifecycle events.
	r.Get("/ws/scanners/{name}", s.handleScanWS)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler, logging every request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []interfaces.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}
	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, interfaces.Field{Key: "query", Value: q})
	}
	if r.Body != nil && r.Method == http.MethodPost {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)
	s.router.ServeHTTP(w, r)
}

// Close shuts down the queue and the run store.
func (s *Server) Close() {
	s.queue.Shutdown()
	if s.runs != nil {
		s.runs.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.App.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// Queue exposes the task queue for advanced use (tests, etc.).
func (s *Server) Queue() *taskqueue.Queue { return s.queue }

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- HTTP handlers ---

// handleEnqueueScan godoc
// @Summary Enqueue a scan
// @Description Submits an asynchronous scan for the named scanner and returns a task handle to poll.
// @Param name path string true "Scanner name"
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /scanners/{name} [post]
func (s *Server) handleEnqueueScan(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	task, err := s.queue.Enqueue(name)
	if err != nil {
		s.logger.Warn("enqueueing scan", interfaces.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("enqueued scan",
		interfaces.Field{Key: "scanner", Value: name},
		interfaces.Field{Key: "task_id", Value: task.ID})
	writeJSON(w, http.StatusOK, map[string]string{
		"state":   string(task.State),
		"task_id": task.ID,
		"url":     "/scanners/status/" + task.ID,
	})
}

// handleScanStatus godoc
// @Summary Poll a scan task
// @Description Returns the task state and, when terminal, the normalized profile or an error summary. Task failure is carried in the payload, not the HTTP status.
// @Param taskID path string true "Task ID"
// @Produce json
// @Success 200 {object} model.TaskStatus
// @Failure 404 {object} map[string]string
// @Router /scanners/status/{taskID} [get]
func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	status, ok := s.queue.Status(taskID)
	if !ok {
		s.logger.Warn("getting task status: not found", interfaces.Field{Key: "task_id", Value: taskID})
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleListRuns godoc
// @Summary List recorded runs
// @Description Returns the most recent successful runs for a scanner, newest first, with diffs against the preceding run.
// @Param name path string true "Scanner name"
// @Param limit query int false "Maximum rows"
// @Produce json
// @Success 200 {array} history.Run
// @Router /scanners/{name}/runs [get]
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	runs, err := s.runs.ListRuns(r.Context(), name, limit)
	if err != nil {
		s.logger.Warn("listing runs", interfaces.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleListTasks godoc
// @Summary List tasks
// @Produce json
// @Success 200 {array} model.TaskStatus
// @Router /tasks [get]
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.queue.List()
	writeJSON(w, http.StatusOK, tasks)
}

// handleScanWS upgrades to a websocket, enqueues a scan and streams the
// task's lifecycle events until it reaches a terminal state.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", interfaces.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	task, err := s.queue.Enqueue(name)
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}

	s.logger.Info("enqueued scan over websocket",
		interfaces.Field{Key: "scanner", Value: name},
		interfaces.Field{Key: "task_id", Value: task.ID})

	for ev := range task.Events {
		if err := conn.WriteJSON(ev); err != nil {
			// Client went away; the scan keeps running, its state stays
			// pollable.
			return
		}
	}

	if status, ok := s.queue.Status(task.ID); ok {
		_ = conn.WriteJSON(status)
	}
}
