package model

import "time"

// PaymentWindow is how long a winner has to pay after being determined,
// on both the initial win and every reassignment.
const PaymentWindow = 48 * time.Hour

// Threshold is one cutoff of a notification ladder: when the time remaining
// in the current phase drops to Before or less, one notification fires.
// Key is the idempotency key recorded in Auction.NotificationsSent so the
// threshold never fires twice within the same phase.
type Threshold struct {
	Key    string
	Before time.Duration
}

// CountdownLadder holds the end-time thresholds for active auctions,
// descending: 5h, 1h, 30m, 10m, 5m.
var CountdownLadder = []Threshold{
	{Key: "end_5h", Before: 300 * time.Minute},
	{Key: "end_1h", Before: 60 * time.Minute},
	{Key: "end_30m", Before: 30 * time.Minute},
	{Key: "end_10m", Before: 10 * time.Minute},
	{Key: "end_5m", Before: 5 * time.Minute},
}

// PaymentLadder holds the payment-deadline thresholds for auctions awaiting
// payment, descending: 24h, 5h, 1h, 30m, 5m.
var PaymentLadder = []Threshold{
	{Key: "pay_24h", Before: 24 * time.Hour},
	{Key: "pay_5h", Before: 5 * time.Hour},
	{Key: "pay_1h", Before: time.Hour},
	{Key: "pay_30m", Before: 30 * time.Minute},
	{Key: "pay_5m", Before: 5 * time.Minute},
}

// DueThresholds returns the ladder entries that should fire now: those whose
// cutoff has been reached and whose key is not yet recorded on the auction.
// Thresholds are independent, so several may come due in one sweep after a
// scheduling gap. A non-positive remaining returns nothing; the phase is over
// and its closing pass owns the auction.
func DueThresholds(ladder []Threshold, remaining time.Duration, a *Auction) []Threshold {
	if remaining <= 0 {
		return nil
	}
	var due []Threshold
	for _, t := range ladder {
		if t.Before >= remaining && !a.Notified(t.Key) {
			due = append(due, t)
		}
	}
	return due
}
