package cart

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/nigersavoir/savoir-client/internal/bus"
	"github.com/nigersavoir/savoir-client/internal/domain"
	"github.com/nigersavoir/savoir-client/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockStore struct {
	store.Store
	value  string
	getErr error
	setErr error
}

func (m *mockStore) Get(context.Context, string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	if m.value == "" {
		return "", store.ErrNotFound
	}
	return m.value, nil
}

func (m *mockStore) Set(_ context.Context, _ string, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.value = value
	return nil
}

func setupCart(t *testing.T) (*Manager, *store.MemoryHandle, *bus.Bus) {
	t.Helper()
	h := store.NewMemoryStore().Open()
	b := bus.New(zap.NewNop())
	return NewManager(h, b, zap.NewNop()), h, b
}

func TestManager_AddItem(t *testing.T) {
	m, _, _ := setupCart(t)
	ctx := context.Background()

	require.NoError(t, m.AddItem(ctx, 7, 1))
	require.NoError(t, m.AddItem(ctx, 3, 2))
	require.NoError(t, m.AddItem(ctx, 7, 4))

	assert.Equal(t, []domain.CartLine{
		{ItemID: 7, Quantity: 5},
		{ItemID: 3, Quantity: 2},
	}, m.Lines(ctx))
	assert.Equal(t, 7, m.Count(ctx))
}

func TestManager_AddItemValidation(t *testing.T) {
	m, _, b := setupCart(t)
	ctx := context.Background()
	calls := 0
	b.Subscribe(bus.TopicCartChanged, func() { calls++ })

	assert.ErrorIs(t, m.AddItem(ctx, 0, 1), ErrInvalidItemID)
	assert.ErrorIs(t, m.AddItem(ctx, 1, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, m.AddItem(ctx, 1, -3), ErrInvalidQuantity)
	assert.Empty(t, m.Lines(ctx))
	assert.Equal(t, 0, calls)
}

func TestManager_SetQuantity(t *testing.T) {
	m, _, _ := setupCart(t)
	ctx := context.Background()

	require.NoError(t, m.AddItem(ctx, 1, 1))
	require.NoError(t, m.AddItem(ctx, 2, 1))
	require.NoError(t, m.SetQuantity(ctx, 1, 9))
	require.NoError(t, m.SetQuantity(ctx, 2, 3))
	assert.Equal(t, []domain.CartLine{{ItemID: 1, Quantity: 9}, {ItemID: 2, Quantity: 3}}, m.Lines(ctx))

	require.NoError(t, m.SetQuantity(ctx, 1, 0))
	for _, l := range m.Lines(ctx) {
		assert.NotEqual(t, int64(1), l.ItemID)
	}

	require.NoError(t, m.SetQuantity(ctx, 2, -1))
	assert.Empty(t, m.Lines(ctx))
}

func TestManager_NoOpWritesStillPublish(t *testing.T) {
	m, _, b := setupCart(t)
	ctx := context.Background()
	calls := 0
	b.Subscribe(bus.TopicCartChanged, func() { calls++ })

	require.NoError(t, m.SetQuantity(ctx, 42, 0))
	require.NoError(t, m.RemoveItem(ctx, 42))
	require.NoError(t, m.Clear(ctx))

	assert.Equal(t, 3, calls)
}

func TestManager_SetQuantityOfAbsentItem(t *testing.T) {
	m, _, b := setupCart(t)
	ctx := context.Background()
	require.NoError(t, m.AddItem(ctx, 1, 2))
	calls := 0
	b.Subscribe(bus.TopicCartChanged, func() { calls++ })

	require.NoError(t, m.SetQuantity(ctx, 9, 3))

	assert.Equal(t, []domain.CartLine{{ItemID: 1, Quantity: 2}}, m.Lines(ctx))
	assert.Equal(t, 1, calls)
}

func TestManager_RejectsUnstorableValues(t *testing.T) {
	m, _, b := setupCart(t)
	ctx := context.Background()
	require.NoError(t, m.AddItem(ctx, 1, domain.MaxQuantity-1))
	calls := 0
	b.Subscribe(bus.TopicCartChanged, func() { calls++ })

	assert.ErrorIs(t, m.AddItem(ctx, 2, domain.MaxQuantity+1), ErrInvalidQuantity)
	assert.ErrorIs(t, m.AddItem(ctx, 1<<60, 1), ErrInvalidItemID)
	assert.ErrorIs(t, m.AddItem(ctx, 1, 2), ErrInvalidQuantity)
	assert.ErrorIs(t, m.AddItem(ctx, 1, math.MaxInt), ErrInvalidQuantity)
	assert.ErrorIs(t, m.SetQuantity(ctx, 1, domain.MaxQuantity+1), ErrInvalidQuantity)
	assert.ErrorIs(t, m.SetQuantity(ctx, 1<<60, 1), ErrInvalidItemID)
	assert.ErrorIs(t, m.Replace(ctx, []domain.CartLine{{ItemID: 1 << 60, Quantity: 1}}), ErrInvalidItemID)
	assert.ErrorIs(t, m.Replace(ctx, []domain.CartLine{
		{ItemID: 3, Quantity: domain.MaxQuantity},
		{ItemID: 3, Quantity: 1},
	}), ErrInvalidQuantity)

	assert.Equal(t, []domain.CartLine{{ItemID: 1, Quantity: domain.MaxQuantity - 1}}, m.Lines(ctx))
	assert.Equal(t, 0, calls)

	require.NoError(t, m.AddItem(ctx, 1, 1))
	require.NoError(t, m.AddItem(ctx, domain.MaxItemID, 1))
	assert.Equal(t, []domain.CartLine{
		{ItemID: 1, Quantity: domain.MaxQuantity},
		{ItemID: domain.MaxItemID, Quantity: 1},
	}, m.Lines(ctx))
}

func TestManager_ClearResetsCount(t *testing.T) {
	m, _, _ := setupCart(t)
	ctx := context.Background()

	require.NoError(t, m.AddItem(ctx, 1, 2))
	require.NoError(t, m.AddItem(ctx, 2, 5))
	require.NoError(t, m.Clear(ctx))

	assert.Equal(t, 0, m.Count(ctx))
	assert.Empty(t, m.Lines(ctx))
}

func TestManager_MalformedContent(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []domain.CartLine
	}{
		{name: "invalid json", raw: `{oops`, expected: []domain.CartLine{}},
		{name: "not an array", raw: `{"bookId":1,"quantity":1}`, expected: []domain.CartLine{}},
		{name: "bad entry", raw: `[{"bookId":"abc","quantity":-1}]`, expected: []domain.CartLine{}},
		{name: "zero and fractional", raw: `[{"bookId":0,"quantity":1},{"bookId":2,"quantity":1.5}]`, expected: []domain.CartLine{}},
		{name: "missing fields", raw: `[{"bookId":3},{"quantity":2},null,5]`, expected: []domain.CartLine{}},
		{
			name:     "numeric strings kept",
			raw:      `[{"bookId":"4","quantity":" 2 "},{"bookId":true,"quantity":1}]`,
			expected: []domain.CartLine{{ItemID: 4, Quantity: 2}},
		},
		{
			name:     "duplicates merged",
			raw:      `[{"bookId":1,"quantity":1},{"bookId":2,"quantity":1},{"bookId":1,"quantity":3}]`,
			expected: []domain.CartLine{{ItemID: 1, Quantity: 4}, {ItemID: 2, Quantity: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, h, _ := setupCart(t)
			ctx := context.Background()
			require.NoError(t, h.Set(ctx, Key, tt.raw))

			assert.Equal(t, tt.expected, m.Lines(ctx))
		})
	}
}

func TestManager_StoredShapeMatchesWebClient(t *testing.T) {
	m, h, _ := setupCart(t)
	ctx := context.Background()

	require.NoError(t, m.AddItem(ctx, 12, 2))

	raw, err := h.Get(ctx, Key)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"bookId":12,"quantity":2}]`, raw)
}

func TestManager_UnsubscribedCallbackNotInvoked(t *testing.T) {
	m, _, _ := setupCart(t)
	ctx := context.Background()
	calls := 0

	unsubscribe := m.Subscribe(func() { calls++ })
	require.NoError(t, m.AddItem(ctx, 1, 1))
	unsubscribe()
	require.NoError(t, m.AddItem(ctx, 1, 1))

	assert.Equal(t, 1, calls)
}

func TestManager_IndependentInstances(t *testing.T) {
	a, _, _ := setupCart(t)
	b, _, _ := setupCart(t)
	ctx := context.Background()

	require.NoError(t, a.AddItem(ctx, 1, 1))

	assert.Empty(t, b.Lines(ctx))
}

func TestManager_StoreErrors(t *testing.T) {
	boom := errors.New("disk full")
	s := &mockStore{setErr: boom}
	b := bus.New(zap.NewNop())
	m := NewManager(s, b, zap.NewNop())
	calls := 0
	b.Subscribe(bus.TopicCartChanged, func() { calls++ })

	assert.ErrorIs(t, m.AddItem(context.Background(), 1, 1), boom)
	assert.Equal(t, 0, calls)

	s.getErr = errors.New("unreachable")
	assert.Empty(t, m.Lines(context.Background()))
}

func TestManager_Replace(t *testing.T) {
	m, _, _ := setupCart(t)
	ctx := context.Background()

	require.NoError(t, m.Replace(ctx, []domain.CartLine{
		{ItemID: 1, Quantity: 2},
		{ItemID: -1, Quantity: 2},
		{ItemID: 1, Quantity: 1},
		{ItemID: 3, Quantity: 0},
	}))

	assert.Equal(t, []domain.CartLine{{ItemID: 1, Quantity: 3}}, m.Lines(ctx))
}

func TestManager_InvariantsHoldForRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for run := 0; run < 50; run++ {
		m, _, _ := setupCart(t)
		for step := 0; step < 40; step++ {
			id := int64(rng.Intn(6) + 1)
			switch rng.Intn(3) {
			case 0:
				require.NoError(t, m.AddItem(ctx, id, rng.Intn(3)+1))
			case 1:
				require.NoError(t, m.SetQuantity(ctx, id, rng.Intn(5)-2))
			case 2:
				require.NoError(t, m.RemoveItem(ctx, id))
			}

			seen := make(map[int64]bool)
			for _, l := range m.Lines(ctx) {
				assert.False(t, seen[l.ItemID], "duplicate item %d", l.ItemID)
				assert.Greater(t, l.Quantity, 0)
				seen[l.ItemID] = true
			}
		}
	}
}
