package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/ontorelease/internal/domain/release"
	"github.com/yungbote/ontorelease/internal/http/response"
	"github.com/yungbote/ontorelease/internal/jobs/steps"
	"github.com/yungbote/ontorelease/internal/platform/dbctx"
	"github.com/yungbote/ontorelease/internal/services"
)

const headerUser = "X-User"

type ReleaseHandler struct {
	releases  services.ReleaseService
	artifacts services.ArtifactService
}

func NewReleaseHandler(releases services.ReleaseService, artifacts services.ArtifactService) *ReleaseHandler {
	return &ReleaseHandler{releases: releases, artifacts: artifacts}
}

// releaseView adds the step names of the script snapshot so clients need
// not decode it to label the progress.
type releaseView struct {
	*release.Release
	StepNames   []string `json:"step_names"`
	CurrentStep string   `json:"current_step,omitempty"`
}

func viewOf(rel *release.Release) releaseView {
	v := releaseView{Release: rel, StepNames: []string{}}
	if script, err := rel.ScriptDoc(); err == nil {
		v.StepNames = script.StepNames()
		if rel.Step >= 0 && rel.Step < len(v.StepNames) {
			v.CurrentStep = v.StepNames[rel.Step]
		}
	}
	return v
}

type artifactView struct {
	*release.Artifact
	Target      string `json:"target,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

func dbcOf(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}

func releaseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_release_id", err)
		return uuid.Nil, false
	}
	return id, true
}

type startReleaseRequest struct {
	StartedBy string `json:"started_by"`
}

// POST /api/repositories/:repo/releases
func (h *ReleaseHandler) Start(c *gin.Context) {
	var req startReleaseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}
	startedBy := strings.TrimSpace(req.StartedBy)
	if startedBy == "" {
		startedBy = strings.TrimSpace(c.GetHeader(headerUser))
	}
	rel, err := h.releases.Start(dbcOf(c), c.Param("repo"), startedBy)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"release": viewOf(rel)})
}

// GET /api/repositories/:repo/releases
func (h *ReleaseHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rels, err := h.releases.ListForRepository(dbcOf(c), c.Param("repo"), limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	out := make([]releaseView, 0, len(rels))
	for _, rel := range rels {
		out = append(out, viewOf(rel))
	}
	response.RespondOK(c, gin.H{"releases": out})
}

// GET /api/releases/:id
func (h *ReleaseHandler) Get(c *gin.Context) {
	id, ok := releaseID(c)
	if !ok {
		return
	}
	rel, err := h.releases.Get(dbcOf(c), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"release": viewOf(rel)})
}

func (h *ReleaseHandler) transition(c *gin.Context, fn func(dbctx.Context, uuid.UUID) (*release.Release, error)) {
	id, ok := releaseID(c)
	if !ok {
		return
	}
	rel, err := fn(dbcOf(c), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"release": viewOf(rel)})
}

// POST /api/releases/:id/continue
func (h *ReleaseHandler) Continue(c *gin.Context) { h.transition(c, h.releases.Continue) }

// POST /api/releases/:id/rerun
func (h *ReleaseHandler) Rerun(c *gin.Context) { h.transition(c, h.releases.RerunStep) }

// POST /api/releases/:id/cancel
func (h *ReleaseHandler) Cancel(c *gin.Context) { h.transition(c, h.releases.Cancel) }

// GET /api/releases/:id/artifacts
func (h *ReleaseHandler) Artifacts(c *gin.Context) {
	id, ok := releaseID(c)
	if !ok {
		return
	}
	list, err := h.artifacts.ListForRelease(dbcOf(c), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	out := make([]artifactView, 0, len(list))
	for _, a := range list {
		v := artifactView{Artifact: a, Target: a.Target()}
		if a.Downloadable {
			v.DownloadURL = steps.DownloadURL(a.ID.String())
		}
		out = append(out, v)
	}
	response.RespondOK(c, gin.H{"artifacts": out})
}
