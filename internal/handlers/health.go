package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStorage is the storage surface the health probe checks.
type HealthStorage interface {
	Ping(ctx context.Context) error
}

// AgentStatus reports whether the payment agent bootstrapped and under which
// account it acts. A missing identity degrades the payload, never the status
// code: the HTTP surface stays serviceable without chain credentials.
type AgentStatus interface {
	Ready() bool
	AgentAddress() string
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
	Agent      string `json:"agent"`
	AgentReady bool   `json:"agentReady"`
	Storage    string `json:"storage"`
}

// HealthHandler handles GET /health. Always returns 200.
func HealthHandler(store HealthStorage, agent AgentStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Agent:     "initializing",
			Storage:   "ok",
		}
		if agent != nil && agent.Ready() {
			resp.Agent = agent.AgentAddress()
			resp.AgentReady = true
		}
		if err := store.Ping(c.Request.Context()); err != nil {
			resp.Storage = "unavailable"
		}
		c.JSON(http.StatusOK, resp)
	}
}
