package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/strefethen/volumio-hub-go/internal/api"
	"github.com/strefethen/volumio-hub-go/internal/apperrors"
	"github.com/strefethen/volumio-hub-go/internal/device"
	"github.com/strefethen/volumio-hub-go/internal/enrollment"
	"github.com/strefethen/volumio-hub-go/internal/events"
	"github.com/strefethen/volumio-hub-go/internal/player"
)

func registerDeviceRoutes(router chi.Router, dev *device.Device, reenrollTime string, pre device.Preselection) {
	router.Method(http.MethodGet, "/v1/status", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, dev.Attributes())
	}))

	router.Method(http.MethodPost, "/v1/refresh", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		dev.Refresh(r.Context())
		return api.WriteAction(w, http.StatusOK, "refresh")
	}))

	router.Method(http.MethodPost, "/v1/initialize", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		dev.Initialize(r.Context(), reenrollTime, pre)
		return api.WriteAction(w, http.StatusOK, "initialize")
	}))

	router.Method(http.MethodGet, "/v1/playlists", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		playlists, err := dev.ListPlaylists(r.Context())
		if err != nil {
			return volumioToAppError(err)
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"playlists": playlists})
	}))

	router.Method(http.MethodPost, "/v1/commands/{command}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		command := chi.URLParam(r, "command")

		var args player.Args
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
				return apperrors.NewValidationError("invalid command arguments: "+err.Error(), nil)
			}
		}

		if err := dev.Dispatch(r.Context(), command, args); err != nil {
			return volumioToAppError(err)
		}
		return api.WriteAction(w, http.StatusOK, command)
	}))
}

func registerPushRoutes(router chi.Router, dev *device.Device) {
	// The Volumio host POSTs raw push bodies here. Always acknowledge with
	// 200: undecodable payloads are logged and dropped by the device, and a
	// non-2xx would only make the sender re-deliver garbage.
	router.Method(http.MethodPost, enrollment.CallbackPath, api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Printf("PUSH: read callback body: %v", err)
			w.WriteHeader(http.StatusOK)
			return nil
		}
		dev.HandleNotification(body)
		w.WriteHeader(http.StatusOK)
		return nil
	}))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The hub serves local controllers on a trusted network; no origin gate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func registerEventRoutes(router chi.Router, hub *events.Hub) {
	router.Get("/v1/events/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("EVENTS: websocket upgrade failed: %v", err)
			return
		}
		hub.Add(conn)
	})
}

// volumioToAppError maps transport failures onto the error taxonomy so the
// HTTP surface reports them with the right code.
func volumioToAppError(err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr
	}
	if tErr, ok := err.(interface{ Timeout() bool }); ok && tErr.Timeout() {
		return apperrors.NewVolumioError(apperrors.ErrorCodeVolumioTimeout, err.Error())
	}
	return apperrors.NewVolumioError(apperrors.ErrorCodeVolumioUnreachable, err.Error())
}
