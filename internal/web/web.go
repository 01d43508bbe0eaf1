package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"cdfplan/internal/config"
	"cdfplan/internal/delivery"
	"cdfplan/internal/host"
	appLog "cdfplan/internal/log"
	"cdfplan/internal/ports"
)

// maxPayloadBytes caps a single port signal body.
const maxPayloadBytes = 4 << 20

// Server exposes the App bundle, the bootstrap handshake and the port
// endpoints.
type Server struct {
	cfg  *config.Config
	host *host.Host
	mux  *http.ServeMux
}

// embeddedStatic contains the built App bundle.
//
// The directory structure under internal/web/static mirrors the output of
// the App build (index.html, app.js, style.css).
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, h *host.Host) *Server {
	s := &Server{
		cfg:  cfg,
		host: h,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	return s.cfg.BasicAuthEnabled()
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Coupe de France", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen+s.cfg.BasePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	base := s.cfg.BasePath

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET "+base+"api/flags", s.handleFlags)
	s.mux.HandleFunc("POST "+base+"api/bootstrap", s.handleBootstrap)
	s.mux.HandleFunc("POST "+base+"api/sessions/{session}/ports/{channel}", s.handlePort)

	// Everything else under the base path is the App bundle.
	s.mux.Handle(base, http.StripPrefix(strings.TrimSuffix(base, "/"), s.staticFileServer()))

	if base != "/" {
		s.mux.Handle("GET /{$}", http.RedirectHandler(base, http.StatusFound))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer returns an http.Handler that serves the embedded App
// files from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unknown /api/* paths must 404, never fall through to HTML.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// handleFlags returns the initial configuration without starting a session.
func (s *Server) handleFlags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.host.Flags(r.Context()))
}

// bootstrapRequest is the App handshake: the channels it can emit.
type bootstrapRequest struct {
	Channels []string `json:"channels"`
}

type bootstrapResponse struct {
	Session  string          `json:"session"`
	Channels []ports.Channel `json:"channels"`
	Flags    host.Flags      `json:"flags"`
}

// handleBootstrap starts one App session.
//
// POST {base}api/bootstrap  {"channels": ["print", "exportCalendar", ...]}
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var req bootstrapRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid handshake")
			return
		}
	}

	sess := s.host.Start(r.Context(), ports.ParseChannels(req.Channels))

	writeJSON(w, http.StatusOK, bootstrapResponse{
		Session:  sess.ID,
		Channels: sess.Channels(),
		Flags:    sess.Flags,
	})
}

// handlePort delivers one App signal.
//
// POST {base}api/sessions/{session}/ports/{channel}
//   - 204: handled, nothing to return
//   - 200: a file (calendar attachment, printed PDF)
//   - 404: channel not wired for this session
//   - 410: unknown or expired session; the App must bootstrap again
//   - 400: malformed payload
func (s *Server) handlePort(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	ch := ports.Channel(r.PathValue("channel"))

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	reply, err := s.host.Dispatch(r.Context(), sessionID, ch, payload)
	switch {
	case err == nil:
	case errors.Is(err, host.ErrUnknownSession):
		appLog.Debug("port signal for stale session", "session", sessionID, "channel", ch)
		writeError(w, http.StatusGone, err.Error())
		return
	case errors.Is(err, ports.ErrNotWired):
		appLog.Debug("port signal ignored", "session", sessionID, "channel", ch, "reason", err.Error())
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, ports.ErrBadPayload):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		appLog.Error("port signal failed", err, "session", sessionID, "channel", ch)
		writeError(w, http.StatusInternalServerError, "signal failed")
		return
	}

	writeReply(w, reply)
}

func writeReply(w http.ResponseWriter, reply *ports.Reply) {
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if reply.ContentType == delivery.ContentType && reply.Disposition == "attachment" {
		delivery.Deliver(w, string(reply.Body), reply.Filename)
		return
	}

	w.Header().Set("Content-Type", reply.ContentType)
	if reply.Disposition != "" {
		w.Header().Set("Content-Disposition", delivery.Disposition(reply.Disposition, reply.Filename))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(reply.Body); err != nil {
		appLog.Error("failed to write reply", err, "content_type", reply.ContentType)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
