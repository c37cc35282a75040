package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/sirupsen/logrus"
	"go-sniper/aggregator"
	"go-sniper/builder"
	"go-sniper/models"
	"go-sniper/plugin"
)

// Options holds the dependencies of the HTTP API.
type Options struct {
	Store        *aggregator.Store
	Builder      *builder.Builder
	Plugins      *plugin.Manager
	DB           Repository
	Plugin       string   // launcher plugin used by POST /scans
	AllowOrigins []string // CORS origins of the panel

	// Notify replaces the Slack notifier fired after terminal transitions.
	Notify func(models.ScanResult)
	Now    func() time.Time
}

// Server wraps the fiber app serving the panel API.
type Server struct {
	app *fiber.App
}

// New prepares the fiber app and its routes.
func New(o Options) *Server {
	h := &Handler{
		store:   o.Store,
		builder: o.Builder,
		pm:      o.Plugins,
		db:      o.DB,
		plugin:  o.Plugin,
		notify:  o.Notify,
		now:     o.Now,
	}
	if h.notify == nil {
		h.notify = h.notifySlack
	}
	if h.now == nil {
		h.now = time.Now
	}

	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Origin", "Accept"},
		AllowOrigins: o.AllowOrigins,
	}))

	// Define routes
	app.Get("/modes", h.ModesHandler)
	app.Post("/scans/preview", h.PreviewHandler)
	app.Post("/scans", h.ScanHandler)

	app.Post("/results", h.IngestHandler)
	app.Get("/results", h.ResultsHandler)
	app.Get("/results/:id", h.ResultHandler)
	app.Put("/results/:id", h.UpdateHandler)
	app.Delete("/results/:id", h.RemoveResultHandler)
	app.Post("/results/:id/transition", h.TransitionHandler)
	app.Get("/results/:id/invocations", h.InvocationsHandler)

	app.Get("/workspaces", h.WorkspacesHandler)
	app.Post("/workspaces", h.CreateWorkspaceHandler)
	app.Get("/workspaces/:name", h.WorkspaceHandler)
	app.Delete("/workspaces/:name", h.DeleteWorkspaceHandler)

	app.Get("/stats", h.StatsHandler)
	app.Get("/settings", h.FetchSettingsHandler)
	app.Post("/settings", h.SettingsHandler)
	app.Get("/plugins", h.EnabledPluginsHandler)

	return &Server{app: app}
}

// App exposes the fiber app, mostly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves the API on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	logrus.Infof("Listening on %s", addr)
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops the listener and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
