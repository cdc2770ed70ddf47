package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/franksymon/Chatbot-api/internal/errors"
	"github.com/franksymon/Chatbot-api/plugin/ai/engine"
	"github.com/franksymon/Chatbot-api/server/internal/observability"
)

// ChatRequest is the JSON body of a chat turn.
type ChatRequest struct {
	Message    string `json:"message"`
	SessionID  string `json:"session_id,omitempty"`
	PromptType string `json:"prompt_type,omitempty"`
}

// ErrorBody is the JSON error envelope for all chat endpoints.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the taxonomy code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleChat serves POST /chat. The provider is selected per request
// via the provider query parameter; stream=true switches to SSE
// delivery.
func (s *APIV1Service) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return writeChatError(c, errors.InvalidArgument("malformed request body"))
	}

	submit := engine.SubmitRequest{
		SessionID:  req.SessionID,
		Message:    req.Message,
		Provider:   c.QueryParam("provider"),
		PromptType: req.PromptType,
	}

	if c.QueryParam("stream") == "true" {
		return s.handleChatStream(c, submit)
	}

	logger := observability.NewRequestContext(slog.Default(), submit.SessionID, submit.Provider)
	logger.Info("chat turn started",
		slog.Int(observability.LogFieldMessageLen, len(submit.Message)),
		slog.String(observability.LogFieldPromptType, submit.PromptType),
	)
	s.Metrics.RecordRequest(submit.Provider)

	result, err := s.Engine.Submit(c.Request().Context(), submit)
	if err != nil {
		s.Metrics.RecordFailure(submit.Provider)
		logger.Error("chat turn failed", err,
			slog.String(observability.LogFieldErrorCode, string(errors.GetCodeFromError(err, errors.ErrCodeProviderError))),
		)
		return writeChatError(c, err)
	}

	s.Metrics.RecordDuration(submit.Provider, logger.Duration())
	logger.Info("chat turn completed",
		slog.Int64(observability.LogFieldDuration, logger.DurationMs()),
	)
	return c.JSON(http.StatusOK, result)
}

// handleChatStream delivers one turn as server-sent events. Pre-flight
// failures still produce a JSON error response; once the stream is
// open, failures arrive as terminal error events.
func (s *APIV1Service) handleChatStream(c echo.Context, submit engine.SubmitRequest) error {
	logger := observability.NewRequestContext(slog.Default(), submit.SessionID, submit.Provider)
	s.Metrics.RecordRequest(submit.Provider)

	events, err := s.Engine.SubmitStream(c.Request().Context(), submit)
	if err != nil {
		s.Metrics.RecordFailure(submit.Provider)
		return writeChatError(c, err)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	logger.Info("chat stream started",
		slog.Int(observability.LogFieldMessageLen, len(submit.Message)),
	)

	chunks := 0
	for ev := range events {
		if ev.Type == engine.EventChunk {
			chunks++
		}
		if ev.Type == engine.EventError {
			s.Metrics.RecordFailure(submit.Provider)
		}
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Error("event serialization failed", err)
			continue
		}
		if err := writeSSE(w, string(ev.Type), data); err != nil {
			// Client went away; the engine notices via context
			// cancellation and abandons the turn.
			logger.Debug("chat stream client disconnected")
			return nil
		}
		w.Flush()
	}

	s.Metrics.RecordChunks(chunks)
	s.Metrics.RecordDuration(submit.Provider, logger.Duration())
	logger.Info("chat stream completed",
		slog.Int(observability.LogFieldChunks, chunks),
		slog.Int64(observability.LogFieldDuration, logger.DurationMs()),
	)
	return nil
}

// HistoryResponse is the wire shape of a session transcript.
type HistoryResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []HistoryMessage `json:"messages"`
}

// HistoryMessage serializes a stored message's role under "type",
// which is the key history consumers expect.
type HistoryMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// handleHistory serves GET /history/:sessionId.
func (s *APIV1Service) handleHistory(c echo.Context) error {
	state, err := s.Engine.History(c.Param("sessionId"))
	if err != nil {
		return writeChatError(c, err)
	}

	resp := HistoryResponse{
		SessionID: state.SessionID,
		Messages:  make([]HistoryMessage, len(state.Messages)),
	}
	for i, msg := range state.Messages {
		resp.Messages[i] = HistoryMessage{
			Type:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// handlePromptTypes serves GET /prompt-types.
func (s *APIV1Service) handlePromptTypes(c echo.Context) error {
	types, def := s.Engine.PromptTypes()
	return c.JSON(http.StatusOK, map[string]any{
		"prompt_types": types,
		"default":      def,
	})
}

// handleTestConnection serves GET /test-connection?provider=.
func (s *APIV1Service) handleTestConnection(c echo.Context) error {
	result, err := s.Engine.TestConnection(c.Request().Context(), c.QueryParam("provider"))
	if err != nil {
		return writeChatError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// handleExportReport serves GET /export-report/:sessionId as an HTML
// attachment.
func (s *APIV1Service) handleExportReport(c echo.Context) error {
	sessionID := c.Param("sessionId")
	state, err := s.Engine.History(sessionID)
	if err != nil {
		return writeChatError(c, err)
	}

	doc, err := s.Reports.Generate(c.Request().Context(), state)
	if err != nil {
		return writeChatError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", s.Reports.Filename(sessionID)))
	return c.Blob(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, doc)
}

// handleMetrics serves GET /metrics with the collector's snapshot.
func (s *APIV1Service) handleMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Metrics.Snapshot())
}

// writeChatError maps the error taxonomy onto HTTP statuses and writes
// the JSON error envelope.
func writeChatError(c echo.Context, err error) error {
	code := errors.GetCodeFromError(err, errors.ErrCodeProviderError)
	return c.JSON(httpStatus(code), ErrorBody{Error: ErrorDetail{
		Code:    string(code),
		Message: err.Error(),
	}})
}

func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidArgument, errors.ErrCodeMissingProvider, errors.ErrCodeUnsupportedProvider:
		return http.StatusBadRequest
	case errors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case errors.ErrCodeProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeSSE(w http.ResponseWriter, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
