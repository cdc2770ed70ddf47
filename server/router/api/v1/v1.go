// Package v1 exposes the chat API over HTTP.
package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/franksymon/Chatbot-api/internal/profile"
	"github.com/franksymon/Chatbot-api/plugin/ai/engine"
	"github.com/franksymon/Chatbot-api/plugin/report"
	"github.com/franksymon/Chatbot-api/server/internal/observability"
)

// APIV1Service wires the conversation engine and report generator into
// HTTP handlers.
type APIV1Service struct {
	Profile *profile.Profile
	Engine  *engine.Engine
	Reports *report.Generator
	Metrics *observability.Metrics
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(p *profile.Profile, eng *engine.Engine, reports *report.Generator) *APIV1Service {
	return &APIV1Service{
		Profile: p,
		Engine:  eng,
		Reports: reports,
		Metrics: observability.NewMetrics(1000),
	}
}

// RegisterRoutes mounts all v1 endpoints on the given group.
func (s *APIV1Service) RegisterRoutes(g *echo.Group) {
	g.POST("/chat", s.handleChat)
	g.GET("/history/:sessionId", s.handleHistory)
	g.GET("/prompt-types", s.handlePromptTypes)
	g.GET("/test-connection", s.handleTestConnection)
	g.GET("/export-report/:sessionId", s.handleExportReport)
	g.GET("/metrics", s.handleMetrics)
}
