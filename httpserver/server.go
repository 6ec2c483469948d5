// Package httpserver exposes the execution service over HTTP.
//
// It carries chat traffic: a POST /v1/run body holds the requestor and
// their raw message, and the response holds the reply text to send back
// to them. Parsing and reply rendering are the gateway package's job;
// this package only maps outcomes onto HTTP statuses.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snipbox/snipbox/admission"
	"github.com/snipbox/snipbox/config"
	"github.com/snipbox/snipbox/gateway"
	"github.com/snipbox/snipbox/orchestrator"
	"github.com/snipbox/snipbox/sandbox"
)

// Submitter runs one chat-submitted request end to end. The orchestrator
// is the production implementation.
type Submitter interface {
	Submit(ctx context.Context, req sandbox.Request) orchestrator.Result
}

// Server is the HTTP front of the service.
type Server struct {
	config    *config.Config
	logger    *zap.Logger
	submitter Submitter
	srv       *http.Server
}

type runRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type runResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Status    string `json:"status"`
	Reply     string `json:"reply"`
}

// New creates the server and its routes.
func New(cfg *config.Config, logger *zap.Logger, submitter Submitter) *Server {
	s := &Server{
		config:    cfg,
		logger:    logger,
		submitter: submitter,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", s.handleHealth)
	engine.POST("/v1/run", s.handleRun)

	s.srv = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the routing for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and message are required"})
		return
	}

	sub, err := gateway.Parse(req.Message)
	if err != nil {
		var ue *gateway.UserError
		if errors.As(err, &ue) {
			c.JSON(http.StatusOK, runResponse{Status: "invalid_request", Reply: ue.Error()})
			return
		}
		s.logger.Error("message parse failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	run := sandbox.Request{
		ID:          uuid.NewString(),
		RequestorID: req.UserID,
		Language:    sub.Language,
		Code:        sub.Code,
		TimeoutCap:  sub.TimeoutCap,
		SubmittedAt: time.Now(),
	}
	res := s.submitter.Submit(c.Request.Context(), run)
	reply := gateway.FormatResult(sub.Language, res)

	if res.Rejected() {
		c.JSON(rejectionStatus(res.Rejection), runResponse{
			Status: "rejected_" + string(res.Rejection.Reason),
			Reply:  reply,
		})
		return
	}

	c.JSON(http.StatusOK, runResponse{
		RequestID: run.ID,
		Status:    res.Status.String(),
		Reply:     reply,
	})
}

func rejectionStatus(rej *admission.Rejection) int {
	switch rej.Reason {
	case admission.ReasonTooLarge:
		return http.StatusRequestEntityTooLarge
	case admission.ReasonRateLimited:
		return http.StatusTooManyRequests
	case admission.ReasonOverloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
