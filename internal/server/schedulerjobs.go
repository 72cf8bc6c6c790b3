package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Manual scheduler triggers for operations tooling. Partial failures are
// reported inside the batch result rather than as an HTTP error so a cron
// caller never retries the whole batch.

func (s *Server) RunNotifications(c *gin.Context) {
	result, err := s.mandateSvc.RunDueNotifications(c.Request.Context())
	if err != nil {
		s.log.Warn("notification run finished with errors", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) RunExecutions(c *gin.Context) {
	result, err := s.mandateSvc.RunDueExecutions(c.Request.Context())
	if err != nil {
		s.log.Warn("execution run finished with errors", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}
