package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	mandatedomain "github.com/finvoice/recurpay/internal/mandate/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateMandate(c *gin.Context) {
	var req mandatedomain.CreateMandateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.mandateSvc.CreateMandate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"mandate": resp})
}

func (s *Server) GetMandateOverview(c *gin.Context) {
	raw := strings.TrimSpace(c.Param("org_id"))
	if raw == "" {
		AbortWithError(c, newValidationError("org_id", "invalid_id", "invalid id"))
		return
	}
	orgID, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, newValidationError("org_id", "invalid_id", "invalid id"))
		return
	}

	overview, err := s.mandateSvc.GetOverview(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}
