// Package api implements the Hub's HTTP dispatch surface on gin-gonic/gin:
// one Server struct with a handler method per route, gin.Context binding
// requests, gin's own Recovery middleware.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"agenthub/internal/dispatch"
	"agenthub/pkg/interfaces"
)

// Server serves the dispatch, client listing, client info, task result,
// and health JSON endpoints, plus a Prometheus /metrics endpoint.
// Deliberately thin: every handler reads from the registry/session manager
// or injects a task through dispatch.Dispatcher; no other logic lives here.
type Server struct {
	registry   interfaces.Registry
	sessions   interfaces.SessionManager
	dispatcher *dispatch.Dispatcher
	engine     *gin.Engine
	log        *zap.SugaredLogger
}

// NewServer builds the gin engine and registers all routes. defaultPlatform
// is passed through to the Dispatcher, used when a dispatch target device
// registered with no platform and the request names none either.
func NewServer(reg interfaces.Registry, sessions interfaces.SessionManager, defaultPlatform string, log *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		registry:   reg,
		sessions:   sessions,
		dispatcher: dispatch.New(reg, sessions, defaultPlatform, log),
		engine:     gin.New(),
		log:        log,
	}
	s.engine.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.POST("/api/dispatch", s.handleDispatch)
	s.engine.GET("/api/clients", s.handleListClients)
	s.engine.GET("/api/clients/:client_id/info", s.handleClientInfo)
	s.engine.GET("/api/task_result/:task_name", s.handleTaskResult)
	s.engine.GET("/api/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// ServeHTTP implements http.Handler so Server can be wrapped or tested like
// any other handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

type dispatchRequest struct {
	ClientID string `json:"client_id"`
	Request  string `json:"request"`
	TaskName string `json:"task_name"`
}

type dispatchResponse struct {
	Status    string `json:"status"`
	TaskName  string `json:"task_name"`
	ClientID  string `json:"client_id"`
	SessionID string `json:"session_id"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

// handleDispatch implements POST /api/dispatch.
func (s *Server) handleDispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, detailResponse{Detail: "Invalid request body"})
		return
	}

	if req.ClientID == "" {
		c.JSON(http.StatusBadRequest, detailResponse{Detail: "Empty client ID"})
		return
	}
	if req.Request == "" {
		c.JSON(http.StatusBadRequest, detailResponse{Detail: "Empty task content"})
		return
	}

	outcome, err := s.dispatcher.Dispatch(dispatch.Request{
		TaskName:    req.TaskName,
		RequestText: req.Request,
		DeviceID:    req.ClientID,
		AssignTask:  true,
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrDeviceNotConnected) {
			c.JSON(http.StatusNotFound, detailResponse{Detail: "Client not online"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, detailResponse{Detail: "Client cannot run this task: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, dispatchResponse{
		Status:    "dispatched",
		TaskName:  outcome.TaskName,
		ClientID:  req.ClientID,
		SessionID: outcome.SessionID,
	})
}

// handleListClients implements GET /api/clients.
func (s *Server) handleListClients(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online_clients": s.registry.List()})
}

// handleClientInfo implements GET /api/clients/{client_id}/info: an
// HTTP-side read of the same cached system_info the DEVICE_INFO_REQUEST/
// DEVICE_INFO_RESPONSE sub-protocol serves over the wire.
func (s *Server) handleClientInfo(c *gin.Context) {
	clientID := c.Param("client_id")
	info, ok := s.registry.DeviceSystemInfo(clientID)
	if !ok {
		info = map[string]interface{}{}
	}
	c.JSON(http.StatusOK, gin.H{"client_id": clientID, "system_info": info})
}

// handleTaskResult implements GET /api/task_result/{task_name}. An unknown
// task_name returns pending, never 404.
func (s *Server) handleTaskResult(c *gin.Context) {
	taskName := c.Param("task_name")
	result, ok := s.sessions.GetResultByTask(taskName)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "pending"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "done", "result": result.Result})
}

// handleHealth implements GET /api/health.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "online_clients": s.registry.List()})
}
