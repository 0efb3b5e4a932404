package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"tradeflow/internal/engine"
	"tradeflow/internal/identity"
	"tradeflow/internal/logger"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// HTTPServer
// -----------------------------------------------------------------------------

// HTTPServer exposes one engine session as a JSON API and pushes dashboard
// updates to websocket clients on /ws.
type HTTPServer struct {
	engine   *engine.Engine
	identity identity.Provider
	log      *logger.Logger
	router   *gin.Engine
	http     *http.Server
	hub      *Hub
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewHTTPServer(e *engine.Engine, provider identity.Provider, log *logger.Logger, debug bool) *HTTPServer {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.Discard()
	}

	s := &HTTPServer{
		engine:   e,
		identity: provider,
		log:      log,
		router:   gin.New(),
	}
	s.hub = NewHub(e, log)

	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())
	s.router.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	s.setupRoutes()
	e.OnUpdate(s.hub.Broadcast)
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *HTTPServer) setupRoutes() {
	s.router.GET("/api/health", s.getHealth)
	s.router.GET("/api/instruments", s.getInstruments)

	api := s.router.Group("/api", s.requireSession)
	api.GET("/dashboard", s.getDashboard)
	api.POST("/follow/:symbol", s.follow)
	api.DELETE("/follow/:symbol", s.unfollow)
	api.POST("/positions/:symbol/shares", s.addShares)
	api.POST("/notifications/read", s.markRead)
	api.POST("/signout", s.signOut)

	s.router.GET("/ws", s.requireSession, s.handleWebSocket)
}

// Handler returns the router, for tests and for mounting behind another server.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Serve runs the hub and serves HTTP on lis until Shutdown is called.
func (s *HTTPServer) Serve(ctx context.Context, lis net.Listener) error {
	s.http = &http.Server{Handler: s.router}
	go s.hub.Run(ctx)

	s.log.Info("HTTP server listening on %s", lis.Addr())
	if err := s.http.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *HTTPServer) requireSession(c *gin.Context) {
	if _, err := s.identity.User(c.Request.Context(), s.engine.User().ID); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Next()
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Debug("%s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}

// -----------------------------------------------------------------------------
// Error Mapping
// -----------------------------------------------------------------------------

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrAlreadyFollowing):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNegativeShares):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrUnknownUser), errors.Is(err, identity.ErrSignedOut):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func mutationBody(err error) (gin.H, error) {
	body := gin.H{"persisted": true}
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrPersistenceFailure):
		body["persisted"] = false
		body["warning"] = err.Error()
	default:
		return nil, err
	}
	return body, nil
}
