package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/strefethen/volumio-hub-go/internal/api"
	"github.com/strefethen/volumio-hub-go/internal/config"
	"github.com/strefethen/volumio-hub-go/internal/db"
	"github.com/strefethen/volumio-hub-go/internal/device"
	"github.com/strefethen/volumio-hub-go/internal/enrollment"
	"github.com/strefethen/volumio-hub-go/internal/events"
	"github.com/strefethen/volumio-hub-go/internal/player"
	"github.com/strefethen/volumio-hub-go/internal/volumio"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestLoggerMiddleware logs all incoming HTTP requests
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, wrapped.status, time.Since(start).Round(time.Millisecond))
	})
}

// Options controls server wiring.
type Options struct {
	// SkipInitialize suppresses the startup identity/enrollment pass (for tests).
	SkipInitialize bool
}

// NewHandler builds the HTTP handler and returns a shutdown function.
func NewHandler(cfg config.Config, options Options) (http.Handler, func(context.Context) error, error) {
	log.Printf("Using database: %s", cfg.SQLiteDBPath)
	dbPair, err := db.Init(cfg.SQLiteDBPath)
	if err != nil {
		return nil, nil, err
	}

	timeout := time.Duration(cfg.VolumioTimeoutMs) * time.Millisecond
	client := volumio.NewClient(cfg.VolumioHost, timeout, cfg.DebugAPI, nil)
	dispatcher := player.NewDispatcher(client, nil)

	callbackPort := cfg.CallbackPort
	if callbackPort == 0 {
		callbackPort, _ = strconv.Atoi(cfg.Port)
	}
	enrollMgr := enrollment.NewManager(client, callbackPort, nil)

	hub := events.NewHub(nil)
	repo := device.NewRepository(dbPair)

	dev, err := device.New(client, dispatcher, enrollMgr, repo, hub.Broadcast, cfg.Debug, nil)
	if err != nil {
		enrollMgr.Stop()
		dbPair.Close()
		return nil, nil, err
	}

	preselection := device.Preselection{
		Playlist: cfg.PreselectPlaylist,
		Shuffle:  cfg.PreselectShuffle,
		Repeat:   cfg.PreselectRepeat,
	}

	if !options.SkipInitialize {
		go dev.Initialize(context.Background(), cfg.ReenrollTime, preselection)
	}

	var poller *device.Poller
	if cfg.PollMode {
		poller = device.NewPoller(dev, time.Duration(cfg.PollIntervalMs)*time.Millisecond, nil)
		poller.Start()
	}

	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(requestLoggerMiddleware)
	router.Use(api.RequestIDMiddleware)
	router.Use(api.RecovererMiddleware)

	registerHealthRoutes(router)
	registerDeviceRoutes(router, dev, cfg.ReenrollTime, preselection)
	registerPushRoutes(router, dev)
	registerEventRoutes(router, hub)

	shutdown := func(ctx context.Context) error {
		enrollMgr.Stop()
		if poller != nil {
			poller.Stop()
		}
		hub.Close()
		return dbPair.Close()
	}

	return router, shutdown, nil
}

func registerHealthRoutes(router chi.Router) {
	router.Method(http.MethodGet, "/v1/health", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		response := map[string]any{
			"status":    "healthy",
			"service":   "volumio-hub",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		return api.WriteJSON(w, http.StatusOK, response)
	}))
	router.Method(http.MethodGet, "/v1/health/live", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}))
	router.Method(http.MethodGet, "/v1/health/ready", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}))
}
