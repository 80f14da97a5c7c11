/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"sync"

	"github.com/rs/zerolog"
)

// Member is one live connection. ID is the stable session id behind it, so a
// session with two tabs open is two members sharing an ID.
type Member interface {
	ID() string
	// Send queues msg without blocking and reports whether it was accepted.
	Send(msg any) bool
}

// Registry groups connected members into one broadcast channel per room code.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[Member]struct{}
	log      zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		channels: make(map[string]map[Member]struct{}),
		log:      log,
	}
}

func (g *Registry) Join(code string, m Member) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.channels[code]
	if !ok {
		ch = make(map[Member]struct{})
		g.channels[code] = ch
	}
	ch[m] = struct{}{}
}

func (g *Registry) Leave(code string, m Member) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.leaveLocked(code, m)
}

// LeaveAll removes m from every channel, returning the codes it was in.
func (g *Registry) LeaveAll(m Member) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var left []string
	for code, ch := range g.channels {
		if _, ok := ch[m]; ok {
			g.leaveLocked(code, m)
			left = append(left, code)
		}
	}
	return left
}

func (g *Registry) leaveLocked(code string, m Member) {
	ch, ok := g.channels[code]
	if !ok {
		return
	}
	delete(ch, m)
	if len(ch) == 0 {
		delete(g.channels, code)
	}
}

// Broadcast offers msg to every member of the channel. Members whose queue is
// full miss the message.
func (g *Registry) Broadcast(code string, msg any) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for m := range g.channels[code] {
		if !m.Send(msg) {
			g.log.Warn().Str("room", code).Str("session", m.ID()).Msg("GAMES: send queue full, message dropped")
		}
	}
}

// Connected reports whether anyone is currently in the channel.
func (g *Registry) Connected(code string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.channels[code]) > 0
}

func (g *Registry) Members(code string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.channels[code])
}
