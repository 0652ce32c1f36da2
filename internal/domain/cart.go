package domain

import "time"

// CartLine is one (user, product, quantity) entry of a user's cart.
// Version increases on every mutation of the line so a checkout can tell
// whether the line changed after it was read.
type CartLine struct {
	UserID    string    `bson:"user_id" json:"user_id"`
	ProductID int64     `bson:"product_id" json:"product_id"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ConsumedLine identifies the exact state of a cart line a checkout turned
// into an order line.
type ConsumedLine struct {
	ProductID int64 `json:"product_id"`
	Version   int64 `json:"version"`
}

// Consumed returns the consumed-line markers for lines.
func Consumed(lines []CartLine) []ConsumedLine {
	out := make([]ConsumedLine, len(lines))
	for i, l := range lines {
		out[i] = ConsumedLine{ProductID: l.ProductID, Version: l.Version}
	}
	return out
}
