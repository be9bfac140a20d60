// Package session реализует таблицу диалоговых сессий покупки.
//
// Сессия хранится только в памяти процесса: у пользователя может быть не более
// одного незавершённого диалога, а новый диалог полностью заменяет предыдущий.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/mkorchagin/starshop-bot/internal/catalog"
)

// State описывает этап диалога покупки.
type State int

const (
	// StateAwaitingHandle — выбран пакет, ожидается хендл получателя.
	StateAwaitingHandle State = iota + 1
	// StateAwaitingProof — хендл принят, ожидается скриншот оплаты.
	StateAwaitingProof
)

// DefaultIdleTimeout — время простоя, после которого сессия считается брошенной.
const DefaultIdleTimeout = 30 * time.Minute

// Session хранит ход одного незавершённого диалога покупки.
// Пакет снимается в момент выбора, поэтому последующие изменения каталога
// не влияют на уже начатый заказ.
type Session struct {
	State      State
	PackageKey string
	Package    catalog.Package
	Handle     string

	touchedAt time.Time
}

const shardCount = 16

type shard struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// Table хранит сессии всех пользователей. Таблица сегментирована по
// идентификатору пользователя: операции над сессиями разных пользователей
// не блокируют друг друга, операции одного пользователя атомарны.
type Table struct {
	shards      [shardCount]*shard
	idleTimeout time.Duration

	now func() time.Time
}

// NewTable создаёт таблицу сессий с указанным таймаутом простоя.
// Нулевой таймаут отключает вытеснение по простою.
func NewTable(idleTimeout time.Duration) *Table {
	t := &Table{
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
	for i := range t.shards {
		t.shards[i] = &shard{sessions: make(map[int64]*Session)}
	}
	return t
}

func (t *Table) shardFor(userID int64) *shard {
	return t.shards[uint64(userID)%shardCount]
}

func (t *Table) expired(s *Session) bool {
	return t.idleTimeout > 0 && t.now().Sub(s.touchedAt) > t.idleTimeout
}

// Start создаёт сессию в состоянии ожидания хендла, полностью заменяя
// предыдущую сессию пользователя, если она была.
func (t *Table) Start(userID int64, packageKey string, pkg catalog.Package) {
	sh := t.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.sessions[userID] = &Session{
		State:      StateAwaitingHandle,
		PackageKey: packageKey,
		Package:    pkg,
		touchedAt:  t.now(),
	}
}

// Get возвращает копию активной сессии пользователя.
// Простаивающая сессия удаляется, как будто её не было.
func (t *Table) Get(userID int64) (Session, bool) {
	sh := t.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[userID]
	if !ok {
		return Session{}, false
	}
	if t.expired(s) {
		delete(sh.sessions, userID)
		return Session{}, false
	}

	return *s, true
}

// SetHandle сохраняет хендл получателя и переводит сессию к ожиданию
// подтверждения оплаты. Возвращает false, если активной сессии в состоянии
// ожидания хендла нет.
func (t *Table) SetHandle(userID int64, handle string) bool {
	sh := t.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[userID]
	if !ok || t.expired(s) || s.State != StateAwaitingHandle {
		return false
	}

	s.Handle = handle
	s.State = StateAwaitingProof
	s.touchedAt = t.now()
	return true
}

// TakeForProof атомарно снимает сессию, ожидающую подтверждения оплаты,
// и возвращает её содержимое. Из одновременных событий одного пользователя
// сессию получает ровно одно; остальные получают false, как если бы
// активной сессии не было.
func (t *Table) TakeForProof(userID int64) (Session, bool) {
	sh := t.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[userID]
	if !ok {
		return Session{}, false
	}
	if t.expired(s) {
		delete(sh.sessions, userID)
		return Session{}, false
	}
	if s.State != StateAwaitingProof {
		return Session{}, false
	}

	delete(sh.sessions, userID)
	return *s, true
}

// Cancel удаляет сессию пользователя и сообщает, была ли она активна.
func (t *Table) Cancel(userID int64) bool {
	sh := t.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[userID]
	if !ok {
		return false
	}
	delete(sh.sessions, userID)

	return !t.expired(s)
}

// Sweep удаляет простаивающие сессии и возвращает их количество.
func (t *Table) Sweep() int {
	removed := 0
	for _, sh := range t.shards {
		sh.mu.Lock()
		for id, s := range sh.sessions {
			if t.expired(s) {
				delete(sh.sessions, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Run периодически чистит простаивающие сессии до отмены контекста.
func (t *Table) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}
