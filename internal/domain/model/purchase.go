package model

import "time"

// PendingPurchaseItem stages one course of an unconfirmed purchase, keyed by
// the gateway payment-intent id. Rows exist only between intent creation and
// webhook resolution; both the success and failure paths delete them.
type PendingPurchaseItem struct {
	ID            string // UUID
	IntentID      string // gateway payment-intent id
	TransactionID string // UUID -> Transaction
	UserID        string // UUID
	CourseID      string
	CourseName    string
	Price         int64 // minor units
	CreatedAt     time.Time
}

// UserPurchase is the committed record of a successful course purchase.
// One per payment intent; immutable after creation.
type UserPurchase struct {
	ID            string // UUID
	UserID        string // UUID
	TransactionID string // UUID -> Transaction (unique)
	IntentID      string // gateway payment-intent id (unique)
	Total         int64
	CreatedAt     time.Time
	Items         []PurchaseItem
}

// PurchaseItem is one course line of a committed purchase.
type PurchaseItem struct {
	ID         string // UUID
	PurchaseID string // UUID -> UserPurchase
	CourseID   string
	CourseName string
	Price      int64
}

// CourseIDs returns the course ids of all line items, in order.
func (p *UserPurchase) CourseIDs() []string {
	out := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		out = append(out, it.CourseID)
	}
	return out
}
