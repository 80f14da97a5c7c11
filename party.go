// Rooms over websockets
//
// A browser opens one websocket to /ws and sends JSON actions tagged with a
// room code. Every action goes through the games engine, which applies it
// to the shared room and pushes the new state to everyone in the room.
//
// Routes:
// - /ws                    → websocket, identity from the partyrooms_id cookie or ?token=
// - /room/:code            → landing page for a room
// - /room/:code/qr         → PNG QR code pointing at the landing page
// - /api/rooms/:code       → JSON snapshot of a room
//
// Sessions:
// - Every browser gets a random session id in a cookie on first contact
// - Creating or joining a room returns a signed token carrying that id, so a
//   client without cookies can reconnect as the same session
// - The host of a room is whichever session created it

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"

	"github.com/Seednode/partyrooms/games"
)

const (
	sendQueue      = 32
	maxMessageSize = 8 << 10
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
)

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
	limiter  *rate.Limiter

	mu     sync.Mutex
	closed bool
}

func (c *Client) ID() string { return c.playerID }

// Send queues msg without blocking. It reports false when the queue is full
// or the connection is gone.
func (c *Client) Send(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "partyrooms_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// sessionID prefers a valid token over the cookie, so a reconnecting client
// keeps its identity even without cookies.
func (s *server) sessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := s.tokens.Parse(token)
		if err != nil {
			return "", err
		}
		return claims.Subject, nil
	}

	return getOrSetPlayerID(w, r), nil
}

func (s *server) serveWS() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID, err := s.sessionID(w, r)
		if err != nil {
			s.log.Info().Err(err).Str("remote", realIP(r)).Msg("SERVE: rejected session token")
			http.Error(w, "invalid session token", http.StatusUnauthorized)
			return
		}

		// the cookie, if one was just issued, has to travel with the upgrade response
		conn, err := upgrader.Upgrade(w, r, w.Header())
		if err != nil {
			s.log.Debug().Err(err).Str("remote", realIP(r)).Msg("SERVE: upgrade failed")
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, sendQueue),
			playerID: playerID,
			limiter:  rate.NewLimiter(rate.Limit(s.cfg.rateLimit), rateBurst),
		}

		s.log.Debug().Str("session", playerID).Str("remote", realIP(r)).Msg("SERVE: websocket connected")

		go client.writePump()
		client.readPump(s, r)
	}
}

func (c *Client) readPump(s *server, r *http.Request) {
	defer func() {
		left := s.registry.LeaveAll(c)
		c.close()
		_ = c.conn.Close()

		s.log.Debug().Str("session", c.playerID).Strs("rooms", left).Msg("SERVE: websocket closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Str("session", c.playerID).Msg("SERVE: websocket read failed")
			}
			return
		}

		if !c.limiter.Allow() {
			c.Send(games.ErrorMessage{Type: games.TypeError, Message: "too many messages, slow down"})
			continue
		}

		cmd, err := games.DecodeCommand(data)
		if err != nil {
			c.Send(games.NewErrorMessage(err))
			continue
		}

		// failures have already been reported to this client
		_ = s.engine.Dispatch(r.Context(), c, cmd)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// qrHandler generates a PNG QR code for a room's landing page.
func (s *server) qrHandler() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code, err := games.NormalizeRoomCode(ps.ByName("code"))
		if err != nil {
			http.Error(w, "invalid room code", http.StatusBadRequest)
			return
		}

		scheme := s.cfg.scheme()
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			s.log.Error().Err(err).Str("room", code).Msg("SERVE: qr generation failed")
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(s.cfg, w)
		_, _ = w.Write(png)
	}
}

func (s *server) serveRoomAPI() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(s.cfg, w)

		snap, err := s.engine.Snapshot(r.Context(), ps.ByName("code"))
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, games.ErrRoomNotFound):
				status = http.StatusNotFound
			case errors.Is(err, games.ErrValidation):
				status = http.StatusBadRequest
			default:
				s.log.Error().Err(err).Str("room", ps.ByName("code")).Msg("SERVE: failed to load room")
			}

			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(games.NewErrorMessage(err))
			return
		}

		if err := json.NewEncoder(w).Encode(snap); err != nil {
			s.log.Debug().Err(err).Msg("SERVE: failed to write room snapshot")
			return
		}

		s.log.Debug().
			Str("room", snap.RoomCode).
			Str("remote", realIP(r)).
			Dur("took", since(startTime)).
			Msg("SERVE: room snapshot")
	}
}

// registerRooms sets up the websocket endpoint and the per-room pages.
func (s *server) registerRooms() {
	prefix := s.cfg.prefix

	s.mux.GET(prefix+"/ws", s.serveWS())

	s.mux.GET(prefix+"/room/:code", s.serveRoomPage())

	s.mux.GET(prefix+"/room/:code/qr", s.qrHandler())

	s.mux.GET(prefix+"/api/rooms/:code", s.serveRoomAPI())
}
