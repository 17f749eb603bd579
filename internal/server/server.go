package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-trend-engine/internal/history"
)

func init() {
	// Prices travel as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Server exposes the price timeline and trend series over HTTP.
type Server struct {
	engine  *gin.Engine
	history *history.Service
	logger  zerolog.Logger
}

// New builds the router with all routes and middleware registered.
func New(svc *history.Service, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:  gin.New(),
		history: svc,
		logger:  logger.With().Str("component", "server").Logger(),
	}

	s.engine.Use(gin.Recovery(), requestID(), accessLog(s.logger))
	s.routes()
	return s
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() *gin.Engine {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)

	v1 := s.engine.Group("/v1")
	v1.GET("/products/:id/history", s.getHistory)
	v1.GET("/products/:id/series", s.getSeries)
	v1.POST("/price-events", s.postPriceEvent)
}

const requestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info().
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	}
}
