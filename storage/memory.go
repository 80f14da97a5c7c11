/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package storage implements games.Store in memory and on SQLite.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Seednode/partyrooms/games"
)

// Memory keeps rooms in a map. Rooms are copied on the way in and out, so
// callers never share state with the store.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]*games.Room
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string]*games.Room)}
}

func (m *Memory) Create(ctx context.Context, r *games.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[r.Code]; ok {
		return games.ErrDuplicateRoom
	}
	m.rooms[r.Code] = r.Clone()
	return nil
}

func (m *Memory) Get(ctx context.Context, code string) (*games.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[code]
	if !ok {
		return nil, games.ErrRoomNotFound
	}
	return r.Clone(), nil
}

func (m *Memory) Save(ctx context.Context, r *games.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.rooms[r.Code]
	if !ok {
		return games.ErrRoomNotFound
	}
	if stored.Version != r.Version {
		return games.ErrVersionConflict
	}

	r.Version++
	m.rooms[r.Code] = r.Clone()
	return nil
}

func (m *Memory) DeleteExpired(ctx context.Context, now time.Time, keep func(string) bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted []string
	for code, r := range m.rooms {
		if r.Permanent || !r.ExpiresAt.Before(now) {
			continue
		}
		if keep != nil && keep(code) {
			continue
		}
		delete(m.rooms, code)
		deleted = append(deleted, code)
	}
	return deleted, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.rooms)
}

var _ games.Store = (*Memory)(nil)
