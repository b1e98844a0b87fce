package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/Tyrowin/newsrelay/internal/relay"
)

// newsRequest is the POST /news payload.
type newsRequest struct {
	News *string `json:"news"`
}

type bodyResult struct {
	data []byte
	err  error
}

// NewsHandler accepts {"news": "..."} and broadcasts it to every connected
// client as "NEWS: ...". Nothing is broadcast unless the request is valid.
func (s *Server) NewsHandler(w http.ResponseWriter, r *http.Request) {
	news, err := s.decodeNews(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("Received news via POST /news", "news", news)
	result := s.broadcaster.Broadcast(relay.NewsText(news))
	s.logger.Debug("News broadcast", "delivered", result.Delivered, "evicted", result.Evicted)

	s.metrics.ObserveNewsRequest(http.StatusOK)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, msgNewsSent)
}

func (s *Server) decodeNews(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := s.readBody(w, r)
	if err != nil {
		return "", err
	}

	var req newsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", badRequest(msgInvalidJSON, err)
	}
	if req.News == nil || *req.News == "" {
		return "", badRequest(msgMissingNews, nil)
	}

	return *req.News, nil
}

// readBody reads the whole request body, giving up after NewsReadTimeout.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	timeout := s.cfg.NewsReadTimeout
	rc := http.NewResponseController(w)
	if err := rc.SetReadDeadline(time.Now().Add(timeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Debug("Could not set read deadline", "error", err)
	}

	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxNewsBodySize)
	results := make(chan bodyResult, 1)
	go func() {
		data, err := io.ReadAll(body)
		results <- bodyResult{data: data, err: err}
	}()

	timer := s.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		return res.data, classifyBodyError(res.err)
	case <-timer.Chan():
		// Unblock the reader; the body must not outlive the handler.
		_ = rc.SetReadDeadline(time.Now())
		<-results
		return nil, requestTimeout(errors.New("timeout receiving news payload"))
	case <-r.Context().Done():
		<-results
		return nil, internalError(r.Context().Err())
	}
}

func classifyBodyError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return bodyTooLarge(err)
	}

	var netErr net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return requestTimeout(err)
	}

	return internalError(err)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	reqErr := statusOf(err)

	if reqErr.Status >= http.StatusInternalServerError {
		s.logger.Error("Error processing POST /news", "status", reqErr.Status, "error", err)
	} else {
		s.logger.Warn("Rejected POST /news", "status", reqErr.Status, "error", err)
	}

	s.metrics.ObserveNewsRequest(reqErr.Status)
	http.Error(w, reqErr.Message, reqErr.Status)
}
