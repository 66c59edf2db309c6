package api

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/neoncad/engine/internal/api/handlers"
	mw "github.com/neoncad/engine/internal/api/middleware"
	"github.com/neoncad/engine/internal/services"
)

//go:embed openapi.json
var openAPIDoc []byte

type Dependencies struct {
	Projects services.ProjectService
	BOM      services.BOMService
	DB       handlers.Pinger
	Logger   *zap.Logger

	// Limiter is optional; without it requests are not rate limited.
	Limiter     *mw.RateLimiter
	CORSOrigins []string
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery(dep.Logger))
	r.Use(mw.Logging(dep.Logger))
	r.Use(mw.CORS(dep.CORSOrigins))
	if dep.Limiter != nil {
		r.Use(dep.Limiter.Middleware)
	}
	r.Use(chimid.Compress(5))

	// Health endpoints
	hh := handlers.NewHealthHandler(dep.DB)
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)

	// API docs
	r.Get("/docs/openapi.json", serveOpenAPI)
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/openapi.json"),
	))

	ph := handlers.NewProjectsHandler(dep.Projects)
	sh := handlers.NewSnapshotsHandler(dep.Projects)
	bh := handlers.NewBOMHandler(dep.BOM)

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/projects", func(pr chi.Router) {
			pr.Get("/", ph.List)
			pr.Post("/", ph.Create)

			pr.Route("/{id}", func(p chi.Router) {
				p.Get("/", ph.Get)
				p.Delete("/", ph.Delete)

				p.Get("/snapshot", sh.Get)
				p.Put("/snapshot", sh.Put)

				p.Get("/versions", sh.Versions)
				p.Get("/versions/{version}", sh.Version)
				p.Post("/versions/{version}/restore", sh.Restore)

				p.Get("/bom", bh.JSON)
				p.Get("/bom.csv", bh.CSV)
				p.Get("/bom.html", bh.HTML)

				p.Get("/exports", bh.ListExports)
				p.Post("/exports", bh.CreateExport)
			})
		})

		api.Get("/exports/{id}", bh.GetExport)
		api.Get("/exports/{id}/csv", bh.DownloadExport)
	})

	return r
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(openAPIDoc)
}
