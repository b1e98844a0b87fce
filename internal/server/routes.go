package server

import (
	"net/http"

	"github.com/Tyrowin/newsrelay/internal/metrics"
)

// Routes configures and returns an HTTP ServeMux with all application routes.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.WebSocketHandler)
	mux.HandleFunc("POST /news", s.NewsHandler)
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.Handle("GET /metrics", metrics.Handler(s.promReg))

	if s.cfg.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir))))
	}

	return mux
}
