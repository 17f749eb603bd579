package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Change kinds recorded on a price event. Derived at write time from the new
// price versus the previous one; "initial" marks the first event of a product.
// "unchanged" is kept for administrative corrections that rewrite a price
// without altering its value.
const (
	ChangeInitial   = "initial"
	ChangeIncrease  = "increase"
	ChangeDecrease  = "decrease"
	ChangeUnchanged = "unchanged"
)

// PriceEvent is one immutable row of a product's price timeline.
type PriceEvent struct {
	ID            int64
	ProductID     string
	Price         decimal.Decimal
	PreviousPrice *decimal.Decimal
	ChangeKind    string
	RecordedAt    time.Time
	CreatedAt     time.Time
}

// Product is a read-only projection of a catalog item. The catalog owns these
// rows; this engine never writes them.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	CreatedAt time.Time
}
