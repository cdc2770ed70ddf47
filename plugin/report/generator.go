// Package report renders a session transcript into a standalone HTML
// clinical report suitable for download or archiving.
package report

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/franksymon/Chatbot-api/internal/errors"
	"github.com/franksymon/Chatbot-api/plugin/ai"
	"github.com/franksymon/Chatbot-api/plugin/ai/session"
)

// summaryWindow bounds how much transcript the executive summary
// prompt carries to the model.
const summaryWindow = 10

// markdownInstance is initialized once and reused. The configuration
// never changes and goldmark.Markdown is safe to share across calls.
var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func markdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownInstance
}

// Generator produces clinical reports. With a model it writes an
// AI executive summary; without one, or when the model fails, it falls
// back to a basic count-based summary so the report always renders.
type Generator struct {
	model ai.ChatModel
	now   func() time.Time
}

// NewGenerator creates a report generator. A nil model disables the
// AI summary.
func NewGenerator(model ai.ChatModel) *Generator {
	return &Generator{model: model, now: time.Now}
}

// Filename returns the attachment name for a session's report.
func (g *Generator) Filename(sessionID string) string {
	return fmt.Sprintf("clinical_report_%s_%s.html", sessionID, g.now().Format("20060102"))
}

// Generate renders the session into a standalone HTML document.
func (g *Generator) Generate(ctx context.Context, state session.State) ([]byte, error) {
	source := g.compose(ctx, state)

	var body bytes.Buffer
	if err := markdown().Convert([]byte(source), &body); err != nil {
		return nil, errors.ReportFailed("render report", err)
	}

	var doc bytes.Buffer
	doc.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&doc, "<title>Clinical Report %s</title>\n", html.EscapeString(state.SessionID))
	doc.WriteString("<style>\n" + reportStyle + "</style>\n</head>\n<body>\n")
	doc.Write(body.Bytes())
	doc.WriteString("</body>\n</html>\n")

	return doc.Bytes(), nil
}

// compose assembles the report markdown: title, session metadata,
// executive summary and the numbered transcript.
func (g *Generator) compose(ctx context.Context, state session.State) string {
	var b strings.Builder

	b.WriteString("# Clinical Psychology Report\n\n")

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Session ID | %s |\n", state.SessionID)
	fmt.Fprintf(&b, "| Date | %s |\n", g.now().Format("2006-01-02 15:04"))
	b.WriteString("| Clinician | Clinical Support System |\n")
	fmt.Fprintf(&b, "| Exchanges | %d |\n\n", len(state.Messages))

	if len(state.Messages) > 0 {
		b.WriteString("## Executive Summary\n\n")
		b.WriteString(g.summary(ctx, state.Messages))
		b.WriteString("\n\n")
	}

	b.WriteString("## Session Transcript\n\n")
	for i, msg := range state.Messages {
		fmt.Fprintf(&b, "**%d. %s:**\n\n", i+1, speaker(msg.Role))
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}

	return b.String()
}

func speaker(role ai.Role) string {
	if role == ai.RoleHuman {
		return "PSYCHOLOGIST"
	}
	return "CLINICAL ASSISTANT"
}

// summary prefers the model-written executive summary and falls back
// to the basic one on any failure. Report generation never fails on
// the summary alone.
func (g *Generator) summary(ctx context.Context, messages []ai.Message) string {
	if g.model == nil {
		return g.basicSummary(messages)
	}

	reply, err := g.model.Invoke(ctx, []ai.Message{ai.HumanMessage(summaryPrompt(messages))})
	if err != nil || strings.TrimSpace(reply.Content) == "" {
		slog.Warn("AI summary unavailable, using basic summary", "error", err)
		return g.basicSummary(messages)
	}
	return strings.TrimSpace(reply.Content)
}

func (g *Generator) basicSummary(messages []ai.Message) string {
	if len(messages) == 0 {
		return "No messages in this session."
	}
	return fmt.Sprintf("Session with %d exchanges. Last updated: %s.",
		len(messages), g.now().Format("2006-01-02 15:04"))
}

func summaryPrompt(messages []ai.Message) string {
	var b strings.Builder
	b.WriteString(`Based on this clinical conversation, write a professional summary of at most 200 words covering:
1. Main topics discussed
2. Symptoms or situations identified
3. Techniques or recommendations suggested
4. Relevant observations

Conversation:
`)

	start := 0
	if len(messages) > summaryWindow {
		start = len(messages) - summaryWindow
	}
	for _, msg := range messages[start:] {
		fmt.Fprintf(&b, "\n%s: %s", speaker(msg.Role), msg.Content)
	}
	return b.String()
}

const reportStyle = `body { font-family: Helvetica, Arial, sans-serif; max-width: 48rem; margin: 2rem auto; color: #1a1a2e; }
h1 { text-align: center; color: #16213e; }
h2 { color: #16213e; border-bottom: 1px solid #ccc; padding-bottom: 0.3rem; }
table { border-collapse: collapse; }
td { border: 1px solid #333; padding: 0.5rem 0.75rem; }
td:first-child { background: #eee; font-weight: bold; }
`
