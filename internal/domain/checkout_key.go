package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
)

// CheckoutKey derives the natural key of a checkout from the user and the
// exact cart state being checked out. A retried checkout of an unchanged cart
// yields the same key; re-adding the same products after a completed checkout
// does not, because the recreated lines carry new creation times.
func CheckoutKey(userID string, lines []CartLine) string {
	sorted := slices.Clone(lines)
	slices.SortFunc(sorted, func(a, b CartLine) int {
		switch {
		case a.ProductID < b.ProductID:
			return -1
		case a.ProductID > b.ProductID:
			return 1
		}
		return 0
	})

	h := sha256.New()
	h.Write([]byte(userID))
	for _, l := range sorted {
		h.Write([]byte{0})
		h.Write(strconv.AppendInt(nil, l.ProductID, 10))
		h.Write([]byte{':'})
		h.Write(strconv.AppendInt(nil, int64(l.Quantity), 10))
		h.Write([]byte{':'})
		h.Write(strconv.AppendInt(nil, l.Version, 10))
		h.Write([]byte{':'})
		h.Write(strconv.AppendInt(nil, l.CreatedAt.UnixMilli(), 10))
	}
	return hex.EncodeToString(h.Sum(nil))
}
