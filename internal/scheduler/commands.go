package scheduler

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"CryptoSentinel/internal/notifier"
)

// Commands returns the chat commands served while polling is enabled.
func (s *Scheduler) Commands() map[string]notifier.CommandHandler {
	return map[string]notifier.CommandHandler{
		"/report": s.handleReport,
		"/status": s.handleStatus,
	}
}

// handleReport runs a cycle on demand. The report itself is the reply when it goes out.
func (s *Scheduler) handleReport(ctx context.Context) string {
	if !s.safeCycle(ctx) {
		return "❌ Report failed, see logs."
	}
	if s.Status().Delivered {
		return ""
	}
	return s.handleStatus(ctx)
}

func (s *Scheduler) handleStatus(context.Context) string {
	st := s.Status()
	if st.CycleID == "" {
		return "No cycle has run yet."
	}

	var b strings.Builder
	b.WriteString("🤖 <b>CryptoSentinel status</b>\n\n")
	b.WriteString(fmt.Sprintf("Last cycle: <code>%s</code>\n", st.CycleID))
	b.WriteString(fmt.Sprintf("Outcome: %s\n", cases.Title(language.English).String(st.Outcome)))
	b.WriteString(fmt.Sprintf("Finished: %s UTC (%s)\n", st.FinishedAt.UTC().Format("2006-01-02 15:04:05"),
		st.FinishedAt.Sub(st.StartedAt).Round(time.Millisecond)))
	b.WriteString(fmt.Sprintf("Assets: %d\n", st.Assets))
	b.WriteString(fmt.Sprintf("Report delivered: %v\n", st.Delivered))
	if st.Error != "" {
		b.WriteString(fmt.Sprintf("Error: %s\n", html.EscapeString(st.Error)))
	}
	if !st.LastSuccess.IsZero() {
		b.WriteString(fmt.Sprintf("Last success: %s UTC\n", st.LastSuccess.UTC().Format("2006-01-02 15:04:05")))
	}
	return b.String()
}
