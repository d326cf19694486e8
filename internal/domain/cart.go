package domain

import "math"

const (
	// MaxItemID is the largest id that survives the JSON number round trip.
	MaxItemID = 1 << 53

	// MaxQuantity bounds the quantity of one cart line.
	MaxQuantity = math.MaxInt32
)

// CartLine is one entry of the local shopping cart. ItemID is the marketplace
// book id.
type CartLine struct {
	ItemID   int64 `json:"bookId"`
	Quantity int   `json:"quantity"`
}

// Valid reports whether the line may be kept in a cart.
func (l CartLine) Valid() bool {
	return l.ItemID > 0 && l.ItemID <= MaxItemID && l.Quantity > 0 && l.Quantity <= MaxQuantity
}
