package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

var (
	ErrAlreadyOpen = errors.New("position already open")
	ErrNotOpen     = errors.New("no open position")
)

// Position is the record of one open holding. It exists iff the controller
// believes it holds a nonzero quantity of the symbol.
type Position struct {
	Symbol     string    `json:"symbol"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
}

// Store is the single source of truth for open positions and purchase
// history. Purchase times survive a Close so the cooldown window is keyed by
// the last purchase regardless of whether the position is still held.
type Store struct {
	mu           sync.RWMutex
	positions    map[string]Position
	lastPurchase map[string]time.Time
}

func NewStore() *Store {
	return &Store{
		positions:    map[string]Position{},
		lastPurchase: map[string]time.Time{},
	}
}

func (s *Store) Get(symbol string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[symbol]
	return pos, ok
}

// Open records a confirmed purchase. Callers must check Get first; an
// existing position indicates a caller bug, not a normal runtime path.
func (s *Store) Open(symbol string, price float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[symbol]; ok {
		return fmt.Errorf("open %s: %w", symbol, ErrAlreadyOpen)
	}
	s.positions[symbol] = Position{Symbol: symbol, EntryPrice: price, EntryTime: at}
	s.lastPurchase[symbol] = at
	return nil
}

// Close removes the position after a confirmed sell and returns it. The
// purchase time is retained for cooldown checks.
func (s *Store) Close(symbol string) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[symbol]
	if !ok {
		return Position{}, fmt.Errorf("close %s: %w", symbol, ErrNotOpen)
	}
	delete(s.positions, symbol)
	return pos, nil
}

func (s *Store) LastPurchase(symbol string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastPurchase[symbol]
	return t, ok
}

// Positions returns a snapshot of all open positions sorted by symbol.
func (s *Store) Positions() []Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Position, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

type checkpoint struct {
	Positions    map[string]Position  `json:"positions"`
	LastPurchase map[string]time.Time `json:"last_purchase"`
}

func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := json.MarshalIndent(checkpoint{
		Positions:    s.positions,
		LastPurchase: s.lastPurchase,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return err
	}
	if cp.Positions == nil {
		cp.Positions = map[string]Position{}
	}
	if cp.LastPurchase == nil {
		cp.LastPurchase = map[string]time.Time{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = cp.Positions
	s.lastPurchase = cp.LastPurchase
	return nil
}
