package handler

import (
	"errors"
	"net/http"
	"time"

	"wildwatch/internal/logger"
	"wildwatch/internal/service"
	hub "wildwatch/internal/service/websocket"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProgressWebsocketHandler registers viewers in the HubService so they receive
// progress events of running video jobs.
func ProgressWebsocketHandler(hubService *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hubService.Register(connection)
		defer hubService.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warning("Progress viewer disconnected with error: %v", err)
				}
				return
			}
		}
	}
}

// StreamWebsocketHandler runs real-time detection: every text message is a
// base64 frame and every reply is the process_frame JSON or {"error": ...}.
func StreamWebsocketHandler(manager *service.Manager, sessions *StreamSessions, maxMessageSize int64, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()
		connection.SetReadLimit(maxMessageSize)

		sessions.add(connection)
		defer sessions.remove(connection)

		started := time.Now()
		frames := 0
		logger.Info("Stream client connected: %s", r.RemoteAddr)

		sessionErr := func() error {
			for {
				messageType, message, err := connection.ReadMessage()
				if err != nil {
					if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						return nil
					}
					return err
				}
				if messageType != websocket.TextMessage {
					if err := connection.WriteJSON(map[string]string{"error": noFrameMessage}); err != nil {
						return err
					}
					continue
				}

				var reply interface{}
				result, err := manager.DetectFrame(r.Context(), string(message))
				switch {
				case errors.Is(err, service.ErrNoFrame):
					reply = map[string]string{"error": noFrameMessage}
				case err != nil:
					reply = map[string]string{"error": err.Error()}
				default:
					frames++
					reply = result
				}

				if err := connection.WriteJSON(reply); err != nil {
					return err
				}
			}
		}()

		if sessionErr != nil {
			logger.Warning("Stream client %s disconnected with error: %v", r.RemoteAddr, sessionErr)
		} else {
			logger.Info("Stream client %s disconnected after %d frames", r.RemoteAddr, frames)
		}
		manager.RecordStreamSession(r.RemoteAddr, frames, started, sessionErr)
	}
}
