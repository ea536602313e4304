// Package model contains the domain entities of the marketplace.
package model

import "time"

// User represents a registered marketplace user.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	// PenaltyCount grows by one for every missed payment deadline
	// and is never decremented.
	PenaltyCount int
	CreatedAt    time.Time
}

// Product represents an item listed by a user.
type Product struct {
	ID          int64
	OwnerID     int64
	Title       string
	Description string
	PriceCents  int64
	Sold        bool
	CreatedAt   time.Time
}

// Auction represents a time-boxed sale of one product via ascending bidding.
type Auction struct {
	ID                 int64
	ProductID          int64
	SellerID           int64
	WinnerID           *int64
	StartingPriceCents int64
	CurrentBidCents    int64
	Status             AuctionStatus
	EndTime            time.Time
	PaymentDeadline    *time.Time
	// NotificationsSent holds the threshold keys already fired for the
	// current phase. Entering a new phase clears it.
	NotificationsSent []string
	// DisqualifiedBidderIDs lists every bidder who won this auction and
	// then missed the payment deadline. They are excluded from all
	// later reassignment pools.
	DisqualifiedBidderIDs []int64
	CreatedAt             time.Time
}

// Notified reports whether the threshold key already fired for the current phase.
func (a *Auction) Notified(key string) bool {
	for _, k := range a.NotificationsSent {
		if k == key {
			return true
		}
	}
	return false
}

// Disqualified reports whether the bidder defaulted on this auction before.
func (a *Auction) Disqualified(bidderID int64) bool {
	for _, id := range a.DisqualifiedBidderIDs {
		if id == bidderID {
			return true
		}
	}
	return false
}

// Bid represents a user's bid on an auction. Bids are append-only and immutable.
type Bid struct {
	ID          int64
	AuctionID   int64
	BidderID    int64
	AmountCents int64
	CreatedAt   time.Time
}

// HighestBid returns the bid with the maximum amount, skipping bidders for
// which skip returns true. Ties resolve to the first bid encountered, which
// with bids ordered by creation time means the earliest of the tied bids.
// Returns nil if no eligible bid remains.
func HighestBid(bids []Bid, skip func(bidderID int64) bool) *Bid {
	var best *Bid
	for i := range bids {
		b := &bids[i]
		if skip != nil && skip(b.BidderID) {
			continue
		}
		if best == nil || b.AmountCents > best.AmountCents {
			best = b
		}
	}
	return best
}

// WalletEntryKind classifies a wallet ledger entry.
type WalletEntryKind string

const (
	WalletEntryDeposit  WalletEntryKind = "deposit"
	WalletEntryPurchase WalletEntryKind = "purchase"
	WalletEntrySale     WalletEntryKind = "sale"
)

// WalletEntry is one signed movement on a user's wallet ledger.
type WalletEntry struct {
	ID          int64
	UserID      int64
	AmountCents int64
	Kind        WalletEntryKind
	CreatedAt   time.Time
}

// Purchase records a completed sale produced by payment settlement.
type Purchase struct {
	ID              int64
	ProductID       int64
	AuctionID       *int64
	BuyerID         int64
	SellerID        int64
	PriceCents      int64
	ShippingAddress string
	CreatedAt       time.Time
}

// NotificationCategory classifies a message delivered to the notification sink.
type NotificationCategory string

const (
	NotifyAuctionCountdown NotificationCategory = "auction_countdown"
	NotifyAuctionWon       NotificationCategory = "auction_won"
	NotifyAuctionLost      NotificationCategory = "auction_lost"
	NotifyAuctionExpired   NotificationCategory = "auction_expired"
	NotifyPaymentReminder  NotificationCategory = "payment_reminder"
	NotifyPaymentPenalty   NotificationCategory = "payment_penalty"
)
