// Package server exposes the sync and publish runs over plain GET routes.
//
// Every route acknowledges in plain text and hands the work to a jobs.Runner.  Outcomes are only
// ever logged.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/toothbrush/epi-contentful-sync/jobs"
	"github.com/toothbrush/epi-contentful-sync/migrate"
)

const (
	busyMessage           = "There's a running process, please wait until finished..."
	allIDsMessage         = "Sync or publish started for all content ids."
	syncAllMessage        = "Sync started for all excursions, voyages and ships."
	syncAndPublishMessage = "Sync and asset publish started for all excursions, voyages and ships."
)

// Migrator is the part of *migrate.Migrator the routes drive.
type Migrator interface {
	SyncMany(ctx context.Context, types []string, opts migrate.RunOptions) ([]migrate.Report, error)
	PublishMany(ctx context.Context, types []string) ([]migrate.PublishReport, error)
}

// Submitter is the part of *jobs.Runner the routes drive.
type Submitter interface {
	Submit(job jobs.Job) (string, error)
	Status() jobs.Status
}

// BasicAuth guards every route when set.  PasswordHash is a bcrypt hash.
type BasicAuth struct {
	Username     string
	PasswordHash []byte
}

type Server struct {
	Runner   Submitter
	Migrator Migrator
	Auth     *BasicAuth

	Info  *log.Logger
	Warn  *log.Logger
	Error *log.Logger
}

func New(runner Submitter, migrator Migrator) *Server {
	return &Server{
		Runner:   runner,
		Migrator: migrator,
		Info:     log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime),
		Warn:     log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime),
		Error:    log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime),
	}
}

// Discard silences all three loggers.
func (s *Server) Discard() {
	for _, l := range []*log.Logger{s.Info, s.Warn, s.Error} {
		l.SetOutput(io.Discard)
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sync/all", s.syncAll)
	mux.HandleFunc("GET /sync/{type}", s.syncOne)
	mux.HandleFunc("GET /sync/{type}/{ids}", s.syncIDs)
	mux.HandleFunc("GET /publish/all", s.publishAll)
	mux.HandleFunc("GET /publish/{types}", s.publishTypes)
	mux.HandleFunc("GET /sync-and-publish/all", s.syncAndPublishAll)
	mux.HandleFunc("GET /status", s.status)

	var h http.Handler = mux
	if s.Auth != nil {
		h = s.requireAuth(h)
	}
	return trimSlash(h)
}

// trimSlash serves "/sync/voyages/" like "/sync/voyages".
func trimSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
			r2 := r.Clone(r.Context())
			r2.URL.Path = strings.TrimRight(p, "/")
			r2.URL.RawPath = ""
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if ok {
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.Auth.Username)) == 1
			passOK := bcrypt.CompareHashAndPassword(s.Auth.PasswordHash, []byte(pass)) == nil
			if userOK && passOK {
				next.ServeHTTP(w, r)
				return
			}
		}
		s.Warn.Printf("Unauthorized request for %s from %s", r.URL.Path, r.RemoteAddr)
		w.Header().Set("WWW-Authenticate", `Basic realm="epi-contentful-sync"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func (s *Server) syncAll(w http.ResponseWriter, r *http.Request) {
	types := migrate.AllTypes
	s.start(w, jobs.Job{
		Name: "sync all",
		Run: func(ctx context.Context) error {
			_, err := s.Migrator.SyncMany(ctx, types, migrate.RunOptions{})
			return err
		},
	}, syncAllMessage)
}

func (s *Server) syncOne(w http.ResponseWriter, r *http.Request) {
	contentType, ok := syncType(r.PathValue("type"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.start(w, jobs.Job{
		Name: "sync " + contentType,
		Run: func(ctx context.Context) error {
			_, err := s.Migrator.SyncMany(ctx, []string{contentType}, migrate.RunOptions{})
			return err
		},
	}, allIDsMessage)
}

func (s *Server) syncIDs(w http.ResponseWriter, r *http.Request) {
	contentType, ok := syncType(r.PathValue("type"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	ids, ok := parseIDs(r.PathValue("ids"), contentType != "ships" && contentType != "ports")
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.start(w, jobs.Job{
		Name: fmt.Sprintf("sync %s %s", contentType, strings.Join(ids, ",")),
		Run: func(ctx context.Context) error {
			_, err := s.Migrator.SyncMany(ctx, []string{contentType}, migrate.RunOptions{IDs: ids})
			return err
		},
	}, startedFor(ids))
}

func (s *Server) publishAll(w http.ResponseWriter, r *http.Request) {
	types := migrate.AllTypes
	s.start(w, jobs.Job{
		Name: "publish all",
		Run: func(ctx context.Context) error {
			_, err := s.Migrator.PublishMany(ctx, types)
			return err
		},
	}, allIDsMessage)
}

func (s *Server) publishTypes(w http.ResponseWriter, r *http.Request) {
	types, err := migrate.ParseTypes(r.PathValue("types"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	s.start(w, jobs.Job{
		Name: "publish " + strings.Join(types, ","),
		Run: func(ctx context.Context) error {
			_, err := s.Migrator.PublishMany(ctx, types)
			return err
		},
	}, startedFor(types))
}

func (s *Server) syncAndPublishAll(w http.ResponseWriter, r *http.Request) {
	types := migrate.AllTypes
	s.start(w, jobs.Job{
		Name: "sync and publish all",
		Run: func(ctx context.Context) error {
			_, syncErr := s.Migrator.SyncMany(ctx, types, migrate.RunOptions{})
			if ctx.Err() != nil {
				return syncErr
			}
			_, publishErr := s.Migrator.PublishMany(ctx, types)
			return errors.Join(syncErr, publishErr)
		},
	}, syncAndPublishMessage)
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	st := s.Runner.Status()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if st.State != jobs.Running {
		fmt.Fprintln(w, "idle")
		return
	}
	fmt.Fprintf(w, "running %s (%s) for %s\n", st.JobName, st.JobID, time.Since(st.Started).Round(time.Second))
}

// start submits job and acknowledges with message, or with the busy message when the runner
// turned it down.
func (s *Server) start(w http.ResponseWriter, job jobs.Job, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	id, err := s.Runner.Submit(job)
	switch {
	case errors.Is(err, jobs.ErrBusy):
		s.Warn.Printf("Rejected %q, a job is running", job.Name)
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, busyMessage)
		return
	case err != nil:
		s.Error.Printf("Couldn't start %q: %v", job.Name, err)
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	s.Info.Printf("Started job %s: %s", id, job.Name)
	io.WriteString(w, message)
}

func syncType(s string) (string, bool) {
	s = strings.ToLower(s)
	for _, t := range migrate.SyncTypes {
		if t == s {
			return t, true
		}
	}
	return "", false
}

// parseIDs splits a comma-separated list.  Numeric types only take integers.
func parseIDs(s string, numeric bool) ([]string, bool) {
	ids := []string{}
	for _, id := range strings.Split(s, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, false
		}
		if numeric {
			if _, err := strconv.Atoi(id); err != nil {
				return nil, false
			}
		}
		ids = append(ids, id)
	}
	return ids, true
}

func startedFor(targets []string) string {
	return fmt.Sprintf("Sync or publish started for [%s]", strings.Join(targets, ", "))
}

// ListenAndServe serves until ctx is cancelled, then drains open requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          s.Error,
	}

	errc := make(chan error, 1)
	go func() {
		s.Info.Printf("Listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	s.Info.Printf("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: couldn't shut down: %w", err)
	}
	return nil
}
