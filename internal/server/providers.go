package server

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/prosearch/config"
	"github.com/mohammad-safakhou/prosearch/provider"
)

// ProvidersHandler serves the provider/model catalog and the UI defaults.
type ProvidersHandler struct {
	Config    *config.Config
	Providers map[string]provider.Provider
}

func (h *ProvidersHandler) Register(g *echo.Group) {
	g.GET("/llm-providers", h.list)
	g.GET("/llm-providers/:name/models", h.models)
	g.GET("/default-config", h.defaults)
}

// ProviderInfo is one catalog entry.
type ProviderInfo struct {
	Name   string               `json:"name"`
	Label  string               `json:"label"`
	Models []provider.ModelInfo `json:"models"`
}

var providerLabels = map[string]string{
	"openai": "OpenAI",
	"gemini": "Google Gemini",
}

func (h *ProvidersHandler) list(c echo.Context) error {
	out := make([]ProviderInfo, 0, len(h.Providers))
	for name, p := range h.Providers {
		out = append(out, ProviderInfo{
			Name:   name,
			Label:  providerLabel(name),
			Models: p.Models(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return c.JSON(http.StatusOK, out)
}

func (h *ProvidersHandler) models(c echo.Context) error {
	name := c.Param("name")
	p, ok := h.Providers[name]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown provider: "+name)
	}
	return c.JSON(http.StatusOK, p.Models())
}

// defaults returns the knobs the UI should preselect.
func (h *ProvidersHandler) defaults(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"llm_provider":    h.Config.LLM.DefaultProvider,
		"model":           h.Config.LLM.Routing.Answer,
		"search_provider": h.Config.Search.Provider,
		"effort":          "medium",
	})
}

func providerLabel(name string) string {
	if label, ok := providerLabels[name]; ok {
		return label
	}
	return name
}
