// Package web serves the receiver status API: the current fix, recent log
// lines, and a websocket stream of accepted fixes.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ubxnav/internal/gps"
	"ubxnav/internal/logging"
)

// StatusSource is satisfied by *gps.Service.
type StatusSource interface {
	Snapshot() gps.Snapshot
}

type StatusResponse struct {
	Service   string       `json:"service"`
	NowUTC    string       `json:"now_utc"`
	UptimeSec float64      `json:"uptime_sec"`
	Streams   int          `json:"streams"`
	GPS       gps.Snapshot `json:"gps"`
}

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 20 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The status page is served from the receiver itself on a local network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler builds the API mux. logs and fixes may be nil; their endpoints
// then return 404.
func Handler(status StatusSource, logs *LogBuffer, fixes *FixBroadcaster, logger *zap.Logger) http.Handler {
	logger = logging.OrNop(logger)
	started := time.Now()
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !requireGET(w, r) {
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !requireGET(w, r) {
			return
		}
		resp := StatusResponse{
			Service:   "ubxnav",
			NowUTC:    time.Now().UTC().Format(time.RFC3339Nano),
			UptimeSec: time.Since(started).Seconds(),
		}
		if status != nil {
			resp.GPS = status.Snapshot()
		}
		if fixes != nil {
			resp.Streams = fixes.Subscribers()
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, resp)
	})

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}

	if fixes != nil {
		mux.HandleFunc("/api/fix/ws", func(w http.ResponseWriter, r *http.Request) {
			serveFixStream(w, r, fixes, logger)
		})
	}

	return mux
}

// serveFixStream writes each fix as a JSON text message until the client
// goes away.
func serveFixStream(w http.ResponseWriter, r *http.Request, fixes *FixBroadcaster, logger *zap.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	id, ch := fixes.Subscribe(4)
	defer fixes.Unsubscribe(id)
	logger.Debug("fix stream opened", zap.String("remote", r.RemoteAddr))

	// Drain client frames so close and pong control messages are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			logger.Debug("fix stream closed", zap.String("remote", r.RemoteAddr))
			return
		case fix, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(wsWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(fix); err != nil {
				logger.Debug("fix stream write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// Serve runs the HTTP server until ctx is cancelled.
func Serve(ctx context.Context, listenAddr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
