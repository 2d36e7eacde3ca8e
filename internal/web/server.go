package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/cibot/internal/db"
)

//go:embed templates
var templateFS embed.FS

var funcMap = template.FuncMap{
	"badgeClass": func(state string) string {
		return "badge badge-" + strings.ReplaceAll(state, "_", "-")
	},
	"shortSHA": shortSHA,
	"relTime":  relTime,
}

// Server is the read-only web UI over the decision log.
type Server struct {
	db   *db.DB
	addr string
	log  *zap.Logger

	dashboardTmpl *template.Template
	commitTmpl    *template.Template
	issueTmpl     *template.Template
}

// NewServer creates a Server with parsed templates. A nil logger discards output.
func NewServer(database *db.DB, addr string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		db:            database,
		addr:          addr,
		log:           log,
		dashboardTmpl: mustParseTmpl("base.html", "dashboard.html"),
		commitTmpl:    mustParseTmpl("base.html", "commit.html"),
		issueTmpl:     mustParseTmpl("base.html", "issue.html"),
	}
}

func mustParseTmpl(names ...string) *template.Template {
	patterns := make([]string, len(names))
	for i, n := range names {
		patterns[i] = "templates/" + n
	}
	return template.Must(template.New("").Funcs(funcMap).ParseFS(templateFS, patterns...))
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			s.handleDashboard(w, r)
		case strings.HasPrefix(r.URL.Path, "/commit/"):
			s.handleCommit(w, r, strings.Trim(strings.TrimPrefix(r.URL.Path, "/commit/"), "/"))
		case strings.HasPrefix(r.URL.Path, "/issue/"):
			s.handleIssue(w, r, strings.Trim(strings.TrimPrefix(r.URL.Path, "/issue/"), "/"))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/api/status-writes", s.handleAPIStatusWrites)
	mux.HandleFunc("/api/docs-events", s.handleAPIDocsEvents)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("cibot UI listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", s.addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func shortSHA(sha string) string {
	if len(sha) > 10 {
		return sha[:10]
	}
	return sha
}
