package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	TimeTracker   *TimeTrackerHandler
	Employees     *EmployeeHandler
	Supervisors   *SupervisorHandler
	WorkSchedules *WorkScheduleHandler
	// Auth guards both API groups. Nil leaves them open.
	Auth       func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.Auth != nil {
			api.Use(cfg.Auth)
		}

		if h := cfg.TimeTracker; h != nil {
			api.Route("/timetracker", func(tt chi.Router) {
				tt.Post("/data", h.Ingest)
				tt.Get("/data", h.Recent)
				tt.Delete("/data", h.Clear)
				tt.Get("/data/latest", h.Latest)
				tt.Get("/data/action/{action}", h.ByAction)
				tt.Get("/data/system/{systemID}", h.BySystem)
				tt.Get("/stats", h.Stats)
				tt.Get("/stream", h.Stream)
			})
		}

		api.Route("/employee", func(emp chi.Router) {
			if h := cfg.Supervisors; h != nil {
				emp.Get("/supervisors", h.List)
				emp.Post("/supervisors", h.Create)
				emp.Get("/supervisors/{id}", h.Get)
				emp.Put("/supervisors/{id}", h.Update)
				emp.Delete("/supervisors/{id}", h.Delete)
			}
			if h := cfg.WorkSchedules; h != nil {
				emp.Get("/schedules", h.List)
				emp.Post("/schedules", h.Create)
				emp.Get("/schedules/{id}", h.Get)
				emp.Put("/schedules/{id}", h.Update)
				emp.Delete("/schedules/{id}", h.Delete)
			}
			if h := cfg.Employees; h != nil {
				emp.Get("/", h.List)
				emp.Post("/", h.Create)
				emp.Get("/unassigned", h.ListUnassigned)
				emp.Post("/assign-card", h.AssignCard)
				// POST is kept for terminals built against the older API.
				emp.Delete("/unassign-card/{cardID}", h.UnassignCard)
				emp.Post("/unassign-card/{cardID}", h.UnassignCard)
				emp.Get("/card/{cardID}", h.ByCard)
				emp.Get("/card-status/{cardID}", h.CardStatus)
				emp.Get("/card-history/{cardID}", h.CardHistory)
				emp.Get("/{id}", h.Get)
				emp.Put("/{id}", h.Update)
				emp.Delete("/{id}", h.Delete)
			}
		})
	})

	return r
}
