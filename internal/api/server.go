package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"opposite-clock/internal/catalog"
	"opposite-clock/internal/display"
	"opposite-clock/internal/location"
	"opposite-clock/internal/metrics"
	"opposite-clock/internal/refresh"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Refresher is the part of the refresh cycle the API drives.
type Refresher interface {
	Update(ctx context.Context) (refresh.Report, error)
	State() refresh.State
	Observer() (location.Observer, bool)
	Cities() []catalog.City
	Interval() time.Duration
}

type Server struct {
	router     *gin.Engine
	server     *http.Server
	cycle      Refresher
	board      *display.Board
	images     ImageConfigurer
	metrics    *metrics.Metrics
	port       int
	configPath string
	now        func() time.Time
}

type ServerConfig struct {
	Port       int
	Cycle      Refresher
	Board      *display.Board
	Images     ImageConfigurer
	Metrics    *metrics.Metrics
	ConfigPath string
	// CORSOrigins enables CORS for these origins; "*" allows any.
	CORSOrigins []string
	Now         func() time.Time
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	if len(cfg.CORSOrigins) > 0 {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	board := cfg.Board
	if board == nil {
		board = display.NewBoard()
	}

	s := &Server{
		router:     router,
		cycle:      cfg.Cycle,
		board:      board,
		images:     cfg.Images,
		metrics:    cfg.Metrics,
		port:       cfg.Port,
		configPath: cfg.ConfigPath,
		now:        now,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	tmpl := template.Must(template.ParseFS(templatesFS, "templates/*.html"))
	s.router.SetHTMLTemplate(tmpl)

	s.router.GET("/", s.dashboardHandler)
	s.router.GET("/dashboard", s.dashboardHandler)
	s.router.HEAD("/", s.dashboardHandler)
	s.router.HEAD("/dashboard", s.dashboardHandler)

	s.router.GET("/health", s.healthHandler)

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	api := s.router.Group("/api/v1")
	{
		api.GET("/board", s.boardHandler)
		api.POST("/refresh", s.refreshHandler)
		api.GET("/cities", s.citiesHandler)
		api.GET("/observer", s.observerHandler)

		api.GET("/config/image", s.getImageConfigHandler)
		api.PUT("/config/image", s.updateImageConfigHandler)
	}
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Int("port", s.port).Msg("API server starting")
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Debug()
		if status >= http.StatusInternalServerError {
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return cors.New(c)
		}
	}
	c.AllowOrigins = origins
	return cors.New(c)
}

func (s *Server) dashboardHandler(c *gin.Context) {
	interval := refresh.DefaultInterval
	if s.cycle != nil {
		interval = s.cycle.Interval()
	}
	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"title":      "Opposite Clock",
		"pollMillis": pollInterval(interval).Milliseconds(),
	})
}

// pollInterval keeps the page reasonably fresh without hammering the API.
func pollInterval(refreshEvery time.Duration) time.Duration {
	poll := refreshEvery / 4
	if poll < time.Second {
		return time.Second
	}
	if poll > 15*time.Second {
		return 15 * time.Second
	}
	return poll
}

func (s *Server) healthHandler(c *gin.Context) {
	resp := gin.H{
		"status":    "healthy",
		"state":     refresh.Idle,
		"timestamp": s.now(),
	}
	if s.cycle != nil {
		resp["state"] = s.cycle.State()
		if obs, ok := s.cycle.Observer(); ok {
			resp["observer"] = obs
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) boardHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.board.Snapshot())
}

func (s *Server) refreshHandler(c *gin.Context) {
	if s.cycle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "refresh cycle is not running"})
		return
	}

	report, err := s.cycle.Update(c.Request.Context())
	if err != nil {
		if errors.Is(err, refresh.ErrIdle) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Location not resolved yet",
				"state": refresh.Idle,
			})
			return
		}
		log.Error().Err(err).Msg("manual refresh failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report": report,
		"board":  s.board.Snapshot(),
	})
}

func (s *Server) citiesHandler(c *gin.Context) {
	var cities []catalog.City
	if s.cycle != nil {
		cities = s.cycle.Cities()
	}

	statuses, err := catalog.Statuses(cities, s.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func (s *Server) observerHandler(c *gin.Context) {
	if s.cycle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Location not resolved yet"})
		return
	}
	obs, ok := s.cycle.Observer()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Location not resolved yet",
			"state": s.cycle.State(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"label":    obs.Label,
		"timezone": obs.Timezone,
		"degraded": obs.Degraded,
		"status":   obs.Status(),
	})
}
