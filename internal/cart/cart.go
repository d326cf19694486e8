package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/nigersavoir/savoir-client/internal/bus"
	"github.com/nigersavoir/savoir-client/internal/domain"
	"github.com/nigersavoir/savoir-client/internal/store"
	"go.uber.org/zap"
)

// Key is the store key holding the serialized cart.
const Key = "marketplace_cart"

// Manager owns the cart lines in the store. Every mutator rewrites the whole
// collection and publishes cart_changed, even when nothing changed.
//
// mu serializes read-modify-write cycles inside one process only; writers in
// other processes still win or lose by landing last.
type Manager struct {
	mu     sync.Mutex
	store  store.Store
	bus    *bus.Bus
	logger *zap.Logger
}

func NewManager(s store.Store, b *bus.Bus, logger *zap.Logger) *Manager {
	return &Manager{
		store:  s,
		bus:    b,
		logger: logger,
	}
}

// Lines returns the cart in insertion order. Malformed content is skipped.
func (m *Manager) Lines(ctx context.Context) []domain.CartLine {
	raw, err := m.store.Get(ctx, Key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("failed to read cart", zap.Error(err))
		}
		return []domain.CartLine{}
	}
	return m.parse(raw)
}

// Count is the sum of quantities over all lines.
func (m *Manager) Count(ctx context.Context) int {
	total := 0
	for _, l := range m.Lines(ctx) {
		total += l.Quantity
	}
	return total
}

// AddItem increases the quantity of itemID, creating the line if needed. A
// total above domain.MaxQuantity is rejected and nothing is written.
func (m *Manager) AddItem(ctx context.Context, itemID int64, quantity int) error {
	if err := checkItemID(itemID); err != nil {
		return err
	}
	if quantity <= 0 || quantity > domain.MaxQuantity {
		return ErrInvalidQuantity
	}

	return m.mutate(ctx, func(lines []domain.CartLine) ([]domain.CartLine, error) {
		for i := range lines {
			if lines[i].ItemID == itemID {
				if lines[i].Quantity > domain.MaxQuantity-quantity {
					return nil, ErrInvalidQuantity
				}
				lines[i].Quantity += quantity
				return lines, nil
			}
		}
		return append(lines, domain.CartLine{ItemID: itemID, Quantity: quantity}), nil
	})
}

// SetQuantity replaces the quantity of an existing line. A quantity of zero or
// less removes the line. Absent items are left absent; the write and the
// notification still happen.
func (m *Manager) SetQuantity(ctx context.Context, itemID int64, quantity int) error {
	if err := checkItemID(itemID); err != nil {
		return err
	}
	if quantity > domain.MaxQuantity {
		return ErrInvalidQuantity
	}

	return m.mutate(ctx, func(lines []domain.CartLine) ([]domain.CartLine, error) {
		if quantity <= 0 {
			return without(lines, itemID), nil
		}
		for i := range lines {
			if lines[i].ItemID == itemID {
				lines[i].Quantity = quantity
			}
		}
		return lines, nil
	})
}

func (m *Manager) RemoveItem(ctx context.Context, itemID int64) error {
	return m.mutate(ctx, func(lines []domain.CartLine) ([]domain.CartLine, error) {
		return without(lines, itemID), nil
	})
}

func (m *Manager) Clear(ctx context.Context) error {
	return m.mutate(ctx, func([]domain.CartLine) ([]domain.CartLine, error) {
		return []domain.CartLine{}, nil
	})
}

// Replace overwrites the cart. Lines with a non-positive id or quantity are
// dropped and duplicates merged. Ids or quantities too large to store, merged
// totals included, reject the whole replacement.
func (m *Manager) Replace(ctx context.Context, lines []domain.CartLine) error {
	totals := make(map[int64]int, len(lines))
	for _, l := range lines {
		if l.ItemID <= 0 || l.Quantity <= 0 {
			continue
		}
		if err := checkItemID(l.ItemID); err != nil {
			return err
		}
		if l.Quantity > domain.MaxQuantity-totals[l.ItemID] {
			return ErrInvalidQuantity
		}
		totals[l.ItemID] += l.Quantity
	}

	return m.mutate(ctx, func([]domain.CartLine) ([]domain.CartLine, error) {
		return normalize(lines), nil
	})
}

func (m *Manager) Subscribe(fn func()) bus.Unsubscribe {
	return m.bus.Subscribe(bus.TopicCartChanged, fn)
}

func (m *Manager) mutate(ctx context.Context, fn func([]domain.CartLine) ([]domain.CartLine, error)) error {
	m.mu.Lock()
	lines, err := fn(m.Lines(ctx))
	if err != nil {
		m.mu.Unlock()
		return err
	}
	encoded, err := json.Marshal(normalize(lines))
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := m.store.Set(ctx, Key, string(encoded)); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("store cart: %w", err)
	}
	m.mu.Unlock()

	m.bus.Publish(bus.TopicCartChanged)
	return nil
}

func (m *Manager) parse(raw string) []domain.CartLine {
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		m.logger.Warn("ignoring malformed cart", zap.Error(err))
		return []domain.CartLine{}
	}

	lines := make([]domain.CartLine, 0, len(entries))
	for _, e := range entries {
		var fields struct {
			BookID   json.RawMessage `json:"bookId"`
			Quantity json.RawMessage `json:"quantity"`
		}
		if err := json.Unmarshal(e, &fields); err != nil {
			m.logger.Debug("skipping malformed cart entry", zap.ByteString("entry", e))
			continue
		}
		id, okID := positiveInt(fields.BookID)
		qty, okQty := positiveInt(fields.Quantity)
		if !okID || !okQty || qty > domain.MaxQuantity {
			m.logger.Debug("skipping invalid cart entry", zap.ByteString("entry", e))
			continue
		}
		lines = append(lines, domain.CartLine{ItemID: id, Quantity: int(qty)})
	}
	return normalize(lines)
}

// positiveInt accepts a JSON number or a numeric string holding a positive
// integer.
func positiveInt(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(text)
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	if f <= 0 || f != math.Trunc(f) || f > domain.MaxItemID {
		return 0, false
	}
	return int64(f), true
}

// normalize drops invalid lines and merges duplicates into the first
// occurrence. Merged quantities are capped at domain.MaxQuantity.
func normalize(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(lines))
	index := make(map[int64]int, len(lines))
	for _, l := range lines {
		if !l.Valid() {
			continue
		}
		if i, ok := index[l.ItemID]; ok {
			out[i].Quantity = int(min(int64(out[i].Quantity)+int64(l.Quantity), domain.MaxQuantity))
			continue
		}
		index[l.ItemID] = len(out)
		out = append(out, l)
	}
	return out
}

func checkItemID(itemID int64) error {
	if itemID <= 0 || itemID > domain.MaxItemID {
		return ErrInvalidItemID
	}
	return nil
}

func without(lines []domain.CartLine, itemID int64) []domain.CartLine {
	out := lines[:0]
	for _, l := range lines {
		if l.ItemID != itemID {
			out = append(out, l)
		}
	}
	return out
}
