package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ontorelease/internal/http/response"
	"github.com/yungbote/ontorelease/internal/services"
)

type TermHandler struct {
	search services.TermSearchService
}

func NewTermHandler(search services.TermSearchService) *TermHandler {
	return &TermHandler{search: search}
}

// GET /api/repositories/:repo/terms/search?q=&limit=
func (h *TermHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	hits, err := h.search.Search(c.Param("repo"), c.Query("q"), limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"terms": hits})
}
