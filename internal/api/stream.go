package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fmuoria/interview-portal/internal/auth"
	"github.com/fmuoria/interview-portal/internal/interview"
	"github.com/fmuoria/interview-portal/internal/models"
)

const (
	streamWriteWait = 5 * time.Second
	streamReadLimit = 512
)

var streamTick = time.Second

// newUpgrader accepts browser origins from allowed, or the request's own host
// when allowed is empty. Clients that send no Origin header are not browsers
// and are let through; they still need a valid token.
func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(allowed) == 0 {
				u, err := url.Parse(origin)
				return err == nil && strings.EqualFold(u.Host, r.Host)
			}
			for _, o := range allowed {
				if o == "*" || strings.EqualFold(strings.TrimSuffix(o, "/"), origin) {
					return true
				}
			}
			return false
		},
	}
}

// handleStream pushes the session timer once per second and every transition
// until the interview completes or the client goes away
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	session, err := s.visibleSession(r.Context(), claims, r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	events, unsubscribe := s.interviews.Subscribe(session.ID)
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("session_id", session.ID), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readUntilClosed(conn, cancel)

	s.logger.Info("interview stream opened", zap.String("session_id", session.ID), zap.String("user_id", claims.UserID))

	if session.Status == models.SessionCompleted {
		s.writeEvent(conn, interview.Event{Type: interview.EventCompleted, SessionID: session.ID, Index: session.CurrentIndex})
		return
	}

	index := session.CurrentIndex
	if !s.writeEvent(conn, interview.Event{Type: interview.EventTick, SessionID: session.ID, Index: index, TimeRemaining: session.TimeRemaining}) {
		return
	}

	ticker := time.NewTicker(streamTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			index = ev.Index
			if !s.writeEvent(conn, ev) || ev.Type == interview.EventCompleted {
				return
			}
		case <-ticker.C:
			remaining, armed := s.interviews.Remaining(session.ID)
			if !armed {
				// completion may have happened before Subscribe
				current, err := s.interviews.Get(ctx, session.ID)
				if err == nil && current.Status == models.SessionCompleted {
					s.writeEvent(conn, interview.Event{Type: interview.EventCompleted, SessionID: session.ID, Index: current.CurrentIndex})
					return
				}
				continue
			}
			if !s.writeEvent(conn, interview.Event{Type: interview.EventTick, SessionID: session.ID, Index: index, TimeRemaining: remaining}) {
				return
			}
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, ev interview.Event) bool {
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(ev); err != nil {
		s.logger.Debug("interview stream closed", zap.String("session_id", ev.SessionID), zap.Error(err))
		return false
	}
	return true
}

// readUntilClosed drains client frames so close and ping messages are handled
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(streamReadLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
