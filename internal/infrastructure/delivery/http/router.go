// Package httprouter serves the read-only status API of a running batch.
package httprouter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"pillowdl/internal/consts"
	"pillowdl/internal/entity"
	"pillowdl/internal/errs"
	"pillowdl/internal/infrastructure/delivery/http/middleware"
	"pillowdl/internal/infrastructure/delivery/http/response"
	"pillowdl/internal/observability"
	"pillowdl/internal/storage"
)

type Router struct {
	*http.ServeMux
	log         *slog.Logger
	globalChain []func(http.Handler) http.Handler
	storer      storage.Storer
	metrics     *observability.Metrics
}

// TasksView is the payload of the task list.
type TasksView struct {
	Counts map[entity.TaskStatus]int `json:"counts"`
	Tasks  []entity.Task             `json:"tasks"`
}

// New creates the router. metricsHandler serves /metrics and may be nil.
func New(log *slog.Logger, storer storage.Storer, metrics *observability.Metrics, metricsHandler http.Handler) *Router {
	r := &Router{
		ServeMux: http.NewServeMux(),
		log:      log.With(slog.String("package", "httprouter")),
		storer:   storer,
		metrics:  metrics,
	}

	r.SetGlobalMiddlewares()
	r.SetRoutes(metricsHandler)

	return r
}

func (r *Router) Use(middleware ...func(http.Handler) http.Handler) {
	r.globalChain = append(r.globalChain, middleware...)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var h http.Handler = r.ServeMux

	for _, middleware := range slices.Backward(r.globalChain) {
		h = middleware(h)
	}

	h.ServeHTTP(w, req)
}

func (r *Router) SetGlobalMiddlewares() {
	r.Use(
		middleware.Recoverer(r.log),
		middleware.RequestID,
		middleware.Logger(r.log, r.metrics),
	)
}

func (r *Router) SetRoutes(metricsHandler http.Handler) {
	r.SetRoutesHealthcheck()
	r.SetRoutesTasks()

	if metricsHandler != nil {
		r.Handle("GET /metrics", metricsHandler)
	}
}

func (r *Router) SetRoutesHealthcheck() {
	r.HandleFunc("GET /v1/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func (r *Router) SetRoutesTasks() {
	r.HandleFunc("GET /v1/tasks/{$}", r.GetTasks)
	r.HandleFunc("GET /v1/tasks/{id}", r.GetTask)
}

func (r *Router) GetTask(w http.ResponseWriter, req *http.Request) {
	log := r.log.With("handler", "GetTask")

	ctx, cancel := context.WithTimeout(req.Context(), consts.DefaultHandlerTimeout)
	defer cancel()

	id := req.PathValue("id")
	if id == "" {
		log.DebugContext(ctx, consts.RespQueryParamMissing)
		response.BadRequest(w, consts.RespQueryParamMissing, nil)

		return
	}

	task, ok := r.storer.GetTaskByID(ctx, id)
	if !ok {
		log.DebugContext(ctx, consts.RespTaskNotFound, slog.String("task_uuid", id))
		response.NotFound(w, consts.RespTaskNotFound, errs.ErrTaskNotFound)

		return
	}

	response.OK(w, consts.RespTaskRetrieved, task, nil)
}

func (r *Router) GetTasks(w http.ResponseWriter, req *http.Request) {
	log := r.log.With("handler", "GetTasks")

	ctx, cancel := context.WithTimeout(req.Context(), consts.DefaultHandlerTimeout)
	defer cancel()

	tasks, err := r.storer.GetTasks(ctx)
	if errors.Is(err, errs.ErrNoTasks) {
		log.DebugContext(ctx, consts.RespNoTasks)
		response.NoContent(w)

		return
	}

	if err != nil {
		log.ErrorContext(ctx, consts.RespGetTasksFail, slog.Any("error", err))
		response.InternalServerError(w, consts.RespGetTasksFail, nil, err)

		return
	}

	response.OK(w, consts.RespTasksRetrieved, TasksView{Counts: r.storer.Counts(ctx), Tasks: tasks}, nil)
}
