package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/prosearch/internal/research"
	"github.com/mohammad-safakhou/prosearch/models"
)

// Researcher runs one research session. Satisfied by *research.Agent.
type Researcher interface {
	Run(ctx context.Context, messages []models.Message, o research.Overrides) (*research.Result, error)
}

// ResearchHandler exposes the research runs.
type ResearchHandler struct {
	Agent Researcher
}

func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("/research", h.run)
}

// ResearchRequest is one run submission: a fresh question or a whole
// conversation, plus optional per-run overrides.
type ResearchRequest struct {
	Question string             `json:"question"`
	Messages []models.Message   `json:"messages"`
	Options  research.Overrides `json:"options"`
}

func (h *ResearchHandler) run(c echo.Context) error {
	var req ResearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	messages := req.Messages
	if q := strings.TrimSpace(req.Question); q != "" {
		messages = append(messages, models.Message{ID: uuid.NewString(), Role: models.RoleUser, Content: q})
	}
	if len(messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "question or messages required")
	}

	result, err := h.Agent.Run(c.Request().Context(), messages, req.Options)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
