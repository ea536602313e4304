package model

// AuctionStatus describes the phase of an auction. Exactly one holds at any time.
type AuctionStatus string

const (
	// AuctionStatusActive means the bidding window is open.
	AuctionStatusActive AuctionStatus = "active"
	// AuctionStatusAwaitingPayment means a winner was determined and has a
	// payment deadline.
	AuctionStatusAwaitingPayment AuctionStatus = "awaiting_payment"
	// AuctionStatusSold means the winner paid and the sale settled.
	AuctionStatusSold AuctionStatus = "sold"
	// AuctionStatusExpired means the auction closed without a sale, either
	// with no bids or after every winner defaulted.
	AuctionStatusExpired AuctionStatus = "expired"
	// AuctionStatusCancelled is part of the status domain for compatibility
	// with stored data but is produced by no transition: bid-free auctions
	// are hard-deleted on cancellation.
	AuctionStatusCancelled AuctionStatus = "cancelled"
	// AuctionStatusCompleted is part of the status domain for compatibility
	// with stored data but is produced by no transition: expiry detection
	// always resolves to awaiting_payment or expired.
	AuctionStatusCompleted AuctionStatus = "completed"
)

// Valid reports whether the status belongs to the closed status domain.
func (s AuctionStatus) Valid() bool {
	switch s {
	case AuctionStatusActive, AuctionStatusAwaitingPayment, AuctionStatusSold,
		AuctionStatusExpired, AuctionStatusCancelled, AuctionStatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave the status.
func (s AuctionStatus) Terminal() bool {
	switch s {
	case AuctionStatusSold, AuctionStatusExpired, AuctionStatusCancelled, AuctionStatusCompleted:
		return true
	}
	return false
}

// transitions is the closed set of legal phase changes. Reassignment keeps
// the auction in awaiting_payment with a fresh deadline, so it is modelled
// as a self-transition.
var transitions = map[AuctionStatus][]AuctionStatus{
	AuctionStatusActive:          {AuctionStatusAwaitingPayment, AuctionStatusExpired},
	AuctionStatusAwaitingPayment: {AuctionStatusAwaitingPayment, AuctionStatusSold, AuctionStatusExpired},
}

// CanTransition reports whether moving from s to next is a legal phase change.
func (s AuctionStatus) CanTransition(next AuctionStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
