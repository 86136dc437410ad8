package transport

import (
	"errors"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/neuravision/neuravision/internal/errors"
	"github.com/neuravision/neuravision/internal/session"
	"github.com/neuravision/neuravision/pkg/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createSession(c *gin.Context) {
	req, ok := h.bindSessionRequest(c)
	if !ok {
		return
	}

	sess := h.sessions.Create("")
	if req.hasChanges() {
		updated, err := h.sessions.Update(sess.ID, req.apply)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "failed to create session", err)
			return
		}
		sess = updated
	}

	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

func (h *Handler) getSession(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, "session not found", err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) updateSession(c *gin.Context) {
	req, ok := h.bindSessionRequest(c)
	if !ok {
		return
	}

	sess, err := h.sessions.Update(c.Param("id"), req.apply)
	if err != nil {
		respondError(c, http.StatusNotFound, "session not found", err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) deleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		respondError(c, http.StatusNotFound, "session not found", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type sessionRequest struct {
	models.SessionRequest
}

func (r sessionRequest) hasChanges() bool {
	return r.APIKey != nil || r.Prompt != nil || r.Preset != nil
}

func (r sessionRequest) apply(s *session.Session) {
	if r.APIKey != nil {
		s.Credential = strings.TrimSpace(*r.APIKey)
	}
	if r.Prompt != nil {
		s.Prompt = *r.Prompt
		if r.Preset == nil && strings.TrimSpace(*r.Prompt) != "" {
			s.Preset = ""
		}
	}
	if r.Preset != nil {
		s.Preset = strings.ToLower(strings.TrimSpace(*r.Preset))
		if r.Prompt == nil && s.Preset != "" {
			s.Prompt = ""
		}
	}
}

// bindSessionRequest reads an optional JSON body and checks the preset name
func (h *Handler) bindSessionRequest(c *gin.Context) (sessionRequest, bool) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req.SessionRequest); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return req, false
	}

	if req.Preset != nil && *req.Preset != "" && !h.knownPreset(*req.Preset) {
		err := apperrors.NewValidationError("Unknown preset: "+*req.Preset, nil)
		respondError(c, err.StatusCode, "invalid session", err)
		return req, false
	}
	return req, true
}

func (h *Handler) knownPreset(name string) bool {
	for _, p := range h.svc.Presets() {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

func toSessionResponse(s session.Session) models.SessionResponse {
	resp := models.SessionResponse{
		ID:            s.ID,
		Prompt:        s.Prompt,
		Preset:        s.Preset,
		HasCredential: s.HasCredential(),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	if s.LastResult != nil {
		resp.LastResult = &models.SessionResult{
			State:       s.LastResult.State,
			Result:      s.LastResult.Message,
			ErrorType:   s.LastResult.ErrorType,
			Model:       s.LastResult.Model,
			CompletedAt: s.LastResult.CompletedAt,
		}
	}
	return resp
}
