package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/warp/leave-portal/leave"
	"github.com/warp/leave-portal/metrics"
)

// =============================================================================
// LIVE FEED - Websocket push of whole-collection snapshots
// =============================================================================
//
// GET /api/live?token=...
//
// On connect the client receives the current users and requests, then a new
// full copy of a collection after every change to it. Employees only see
// their own user record and their own requests.

const (
	liveWriteWait  = 10 * time.Second
	livePingPeriod = 15 * time.Second
	livePongWait   = 2 * livePingPeriod
)

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients
				return true
			}
			for _, allowed := range h.AllowedOrigins {
				if origin == allowed || allowed == "*" {
					return true
				}
			}
			h.Logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// Live streams collection snapshots over a websocket.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	actor, _ := Actor(r.Context())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	users, err := h.Service.Repo.Subscribe(ctx, leave.CollectionUsers)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	requests, err := h.Service.Repo.Subscribe(ctx, leave.CollectionRequests)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	upgrader := h.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	metrics.LiveClientConnected()
	defer metrics.LiveClientDisconnected()
	h.Logger.Debug("live client connected", slog.String("user_id", actor.ID))

	// The read loop only handles control frames; it ends the stream when the
	// client goes away.
	ws.SetReadDeadline(time.Now().Add(livePongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(livePongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		var msg LiveMessage
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
			continue
		case u, ok := <-users:
			if !ok {
				return
			}
			msg = liveUsers(actor, u.Users)
		case u, ok := <-requests:
			if !ok {
				return
			}
			msg = liveRequests(actor, u.Requests)
		}

		ws.SetWriteDeadline(time.Now().Add(liveWriteWait))
		if err := ws.WriteJSON(msg); err != nil {
			h.Logger.Debug("live stream ended", slog.String("user_id", actor.ID), slog.String("reason", err.Error()))
			return
		}
	}
}

func liveUsers(actor leave.User, users []leave.User) LiveMessage {
	if !actor.IsAdmin() {
		visible := users[:0:0]
		for _, u := range users {
			if u.ID == actor.ID {
				visible = append(visible, u)
			}
		}
		users = visible
	}
	return LiveMessage{Collection: leave.CollectionUsers, Data: toUserDTOs(users)}
}

func liveRequests(actor leave.User, reqs []leave.LeaveRequest) LiveMessage {
	visible := make([]leave.LeaveRequest, 0, len(reqs))
	for _, r := range reqs {
		if actor.IsAdmin() || r.UserID == actor.ID {
			visible = append(visible, r)
		}
	}
	leave.NewestFirst(visible)
	return LiveMessage{Collection: leave.CollectionRequests, Data: toRequestDTOs(visible)}
}
