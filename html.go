/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/partyrooms/games"
)

func (s *server) serveHomePage() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(s.cfg, w)

		_ = getOrSetPlayerID(w, r)

		var body strings.Builder
		body.WriteString(`<h1>partyrooms</h1>`)
		body.WriteString(`<p>Rooms for two party games, kept in sync for everyone in them.</p>`)
		body.WriteString(`<ul>`)
		body.WriteString(`<li><b>challenges</b>: everyone adds dares to a shared deck, then the deck is shuffled and played.</li>`)
		body.WriteString(`<li><b>guessing</b>: the host asks numeric questions and players score up to 1000 points for a close guess.</li>`)
		body.WriteString(`</ul>`)
		body.WriteString(fmt.Sprintf(`<p>Clients connect to <code>%s/ws</code>. Each room has a page at <code>%s/room/CODE</code>.</p>`,
			html.EscapeString(s.cfg.prefix), html.EscapeString(s.cfg.prefix)))

		written, _ := w.Write([]byte(newPage("partyrooms", body.String())))

		s.log.Debug().
			Int("bytes", written).
			Str("remote", realIP(r)).
			Dur("took", since(startTime)).
			Msg("SERVE: home page")
	}
}

// serveRoomPage is the landing page a QR code points to.
func (s *server) serveRoomPage() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		snap, err := s.engine.Snapshot(r.Context(), ps.ByName("code"))
		switch {
		case errors.Is(err, games.ErrRoomNotFound), errors.Is(err, games.ErrValidation):
			notFound(s.cfg, w, "That room does not exist.")

			return
		case err != nil:
			s.log.Error().Err(err).Str("room", ps.ByName("code")).Msg("SERVE: failed to load room")
			http.Error(w, games.UserMessage(err), http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(s.cfg, w)

		_ = getOrSetPlayerID(w, r)

		var body strings.Builder
		body.WriteString(fmt.Sprintf(`<h1>Room %s</h1>`, html.EscapeString(snap.RoomCode)))
		body.WriteString(fmt.Sprintf(`<p>Game: %s</p>`, html.EscapeString(string(snap.GameType))))

		if snap.GameStarted {
			body.WriteString(`<p>The game is under way.</p>`)
		} else {
			body.WriteString(`<p>Waiting in the lobby.</p>`)
		}

		if len(snap.Players) > 0 {
			body.WriteString(`<h2>Players</h2><ol>`)
			for _, p := range snap.Players {
				body.WriteString(fmt.Sprintf(`<li>%s (%d)</li>`, html.EscapeString(p.Name), p.Score))
			}
			body.WriteString(`</ol>`)
		}

		body.WriteString(fmt.Sprintf(`<img src="%s/room/%s/qr" alt="QR code for this room" width="320" height="320">`,
			html.EscapeString(s.cfg.prefix), html.EscapeString(snap.RoomCode)))

		written, _ := w.Write([]byte(newPage("Room "+snap.RoomCode, body.String())))

		s.log.Debug().
			Str("room", snap.RoomCode).
			Int("bytes", written).
			Str("remote", realIP(r)).
			Dur("took", since(startTime)).
			Msg("SERVE: room page")
	}
}

func (s *server) serveHealthCheck() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(s.cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			s.log.Debug().Err(err).Msg("SERVE: failed to write health check")

			return
		}
	}
}

func (s *server) serveRobots() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /room/
Disallow: /api/
Disallow: /ws

User-agent: GPTBot
Disallow: /

User-agent: CCBot
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(s.cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			s.log.Debug().Err(err).Msg("SERVE: failed to write robots.txt")

			return
		}
	}
}
