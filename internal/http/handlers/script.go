package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ontorelease/internal/http/response"
	"github.com/yungbote/ontorelease/internal/services"
)

const maxScriptBytes = 1 << 20

type ScriptHandler struct {
	scripts services.ScriptService
}

func NewScriptHandler(scripts services.ScriptService) *ScriptHandler {
	return &ScriptHandler{scripts: scripts}
}

// GET /api/repositories/:repo/script
func (h *ScriptHandler) Get(c *gin.Context) {
	script, stored, err := h.scripts.GetScript(dbcOf(c), c.Param("repo"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"script": script, "stored": stored})
}

// PUT /api/repositories/:repo/script
func (h *ScriptHandler) Put(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxScriptBytes+1))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(body) > maxScriptBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "script_too_large", errors.New("script document exceeds 1 MiB"))
		return
	}
	script, err := h.scripts.PutScript(dbcOf(c), c.Param("repo"), body, strings.TrimSpace(c.GetHeader(headerUser)))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"script": script, "stored": true})
}
