package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/cibot/internal/db"
)

const (
	dashboardLimit = 50
	apiLimit       = 200
)

// ---- view models ----

type DashboardData struct {
	StatusWrites []StatusRow
	DocsEvents   []DocsRow
	Summary      Summary
}

type Summary struct {
	Written int
	Skipped int
	Queued  int
}

type StatusRow struct {
	SHA         string
	Context     string
	State       string
	Written     bool
	Reason      string
	Description string
	TimeAgo     string
}

type DocsRow struct {
	Issue   int
	SHA     string
	Action  string
	TimeAgo string
}

type CommitData struct {
	SHA          string
	StatusWrites []StatusRow
}

type IssueData struct {
	Issue      int
	DocsEvents []DocsRow
}

func statusRows(writes []db.StatusWrite) []StatusRow {
	rows := make([]StatusRow, len(writes))
	for i, w := range writes {
		rows[i] = StatusRow{
			SHA:         w.SHA,
			Context:     w.Context,
			State:       w.State,
			Written:     w.Written,
			Reason:      w.Reason,
			Description: w.Description,
			TimeAgo:     relTime(w.Timestamp),
		}
	}
	return rows
}

func docsRows(events []db.DocsEvent) []DocsRow {
	rows := make([]DocsRow, len(events))
	for i, e := range events {
		rows[i] = DocsRow{Issue: e.Issue, SHA: e.SHA, Action: e.Action, TimeAgo: relTime(e.Timestamp)}
	}
	return rows
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writes, err := s.db.ListStatusWrites("", dashboardLimit)
	if err != nil {
		s.serverError(w, err)
		return
	}
	events, err := s.db.ListDocsEvents(0, dashboardLimit)
	if err != nil {
		s.serverError(w, err)
		return
	}

	data := DashboardData{StatusWrites: statusRows(writes), DocsEvents: docsRows(events)}
	for _, sw := range writes {
		if sw.Written {
			data.Summary.Written++
		} else {
			data.Summary.Skipped++
		}
	}
	for _, e := range events {
		if e.Action == db.DocsActionQueued {
			data.Summary.Queued++
		}
	}
	s.render(w, s.dashboardTmpl, data)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request, sha string) {
	if sha == "" {
		http.NotFound(w, r)
		return
	}
	writes, err := s.db.ListStatusWrites(sha, 0)
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.render(w, s.commitTmpl, CommitData{SHA: sha, StatusWrites: statusRows(writes)})
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request, issueStr string) {
	issue, err := strconv.Atoi(issueStr)
	if err != nil || issue <= 0 {
		http.Error(w, "invalid issue", http.StatusBadRequest)
		return
	}
	events, err := s.db.ListDocsEvents(issue, 0)
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.render(w, s.issueTmpl, IssueData{Issue: issue, DocsEvents: docsRows(events)})
}

func (s *Server) handleAPIStatusWrites(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	writes, err := s.db.ListStatusWrites(r.URL.Query().Get("sha"), limit)
	if err != nil {
		s.serverError(w, err)
		return
	}
	if writes == nil {
		writes = []db.StatusWrite{}
	}
	writeJSON(w, writes)
}

func (s *Server) handleAPIDocsEvents(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	issue := 0
	if v := r.URL.Query().Get("issue"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid issue", http.StatusBadRequest)
			return
		}
		issue = n
	}
	events, err := s.db.ListDocsEvents(issue, limit)
	if err != nil {
		s.serverError(w, err)
		return
	}
	if events == nil {
		events = []db.DocsEvent{}
	}
	writeJSON(w, events)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Conn().PingContext(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintln(w, "ok")
}

func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return apiLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func (s *Server) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		s.log.Error("render template", zap.Error(err))
	}
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.log.Error("web request failed", zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func relTime(ts string) string {
	formats := []string{
		time.RFC3339,
		db.TimeFormat,
		"2006-01-02 15:04:05",
	}
	var t time.Time
	for _, f := range formats {
		if parsed, err := time.Parse(f, ts); err == nil {
			t = parsed
			break
		}
	}
	if t.IsZero() {
		return ts
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
