package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/fabric-agent/backend/internal/handler/query"
	middlewarePkg "github.com/zhouzirui/fabric-agent/backend/internal/middleware"
)

// NewRouter wires HTTP routes to the query executor.
func NewRouter(resolve query.Resolver, timeout time.Duration, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(allowedOrigins))

	queryHandler := query.New(resolve, timeout)

	r.Route("/api", func(api chi.Router) {
		queryHandler.RegisterRoutes(api)
	})

	return r
}
