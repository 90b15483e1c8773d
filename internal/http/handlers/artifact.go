package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/ontorelease/internal/http/response"
	"github.com/yungbote/ontorelease/internal/services"
)

type ArtifactHandler struct {
	artifacts services.ArtifactService
}

func NewArtifactHandler(artifacts services.ArtifactService) *ArtifactHandler {
	return &ArtifactHandler{artifacts: artifacts}
}

// GET /api/artifacts/:id/download
func (h *ArtifactHandler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_artifact_id", err)
		return
	}
	a, rc, err := h.artifacts.Open(dbcOf(c), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	defer rc.Close()

	name := a.Target()
	if name == "" {
		name = a.FileName()
	}
	c.DataFromReader(http.StatusOK, -1, contentType(name), rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", baseName(name)),
	})
}
