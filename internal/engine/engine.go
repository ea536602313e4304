// Package engine runs the periodic reconciliation passes that drive auctions
// through their lifecycle: countdown alerts, bidding-window close, payment
// reminders, and payment default with winner reassignment.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RubenMansilla/Nebripop-sub000/internal/model"
)

// Store describes the auction store surface the engine reconciles against.
// Phase transitions report false when another actor moved the auction first;
// the engine then drops all side effects for that auction.
type Store interface {
	GetAuction(ctx context.Context, id int64) (*model.Auction, error)
	GetAuctionsByStatus(ctx context.Context, status model.AuctionStatus) ([]model.Auction, error)
	GetExpiredActiveAuctions(ctx context.Context, now time.Time) ([]model.Auction, error)
	GetOverduePaymentAuctions(ctx context.Context, now time.Time) ([]model.Auction, error)
	GetBidsByAuction(ctx context.Context, auctionID int64) ([]model.Bid, error)
	MarkThresholdSent(ctx context.Context, auctionID int64, key string, status model.AuctionStatus) error
	FinishToAwaitingPayment(ctx context.Context, auctionID, winnerID int64, amountCents int64, deadline time.Time) (bool, error)
	ExpireActiveAuction(ctx context.Context, auctionID int64) (bool, error)
	ExpireUnpaidAuction(ctx context.Context, auctionID int64) (bool, error)
	ReassignWinner(ctx context.Context, auctionID, prevWinnerID, newWinnerID int64, amountCents int64, deadline time.Time) (bool, error)
	IncrementPenalty(ctx context.Context, userID int64) (int, error)
}

// Notifier delivers a message to a user. Delivery failures never abort a
// sweep; the per-phase threshold keys keep retried sweeps from repeating
// themselves semantically.
type Notifier interface {
	Notify(ctx context.Context, userID int64, message string, category model.NotificationCategory, productID *int64) error
}

// Engine owns the four reconciliation passes.
type Engine struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	// One run lock per pass: a sweep that outlives the tick interval makes
	// the next invocation skip instead of overlapping it.
	countdownLock sync.Mutex
	finishLock    sync.Mutex
	reminderLock  sync.Mutex
	defaultLock   sync.Mutex
}

// New creates an engine sweeping at the given interval.
func New(store Store, notifier Notifier, logger *zap.Logger, interval time.Duration) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Run schedules the four passes as independent periodic tasks and blocks
// until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	passes := []struct {
		name string
		run  func(context.Context)
	}{
		{"countdown", e.RunCountdownPass},
		{"finish", e.RunFinishPass},
		{"payment_reminder", e.RunReminderPass},
		{"payment_default", e.RunDefaultPass},
	}

	var wg sync.WaitGroup
	for _, p := range passes {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()

			ticker := time.NewTicker(e.interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.run(ctx)
				}
			}
		}()
	}
	wg.Wait()
}

// RunCountdownPass notifies the bidders of every active auction when a
// remaining-time threshold is crossed. Each threshold fires at most once per
// phase.
func (e *Engine) RunCountdownPass(ctx context.Context) {
	if !e.countdownLock.TryLock() {
		e.logger.Warn("countdown pass still running, skipping invocation")
		return
	}
	defer e.countdownLock.Unlock()

	auctions, err := e.store.GetAuctionsByStatus(ctx, model.AuctionStatusActive)
	if err != nil {
		e.logger.Error("countdown pass: load auctions", zap.Error(err))
		return
	}

	for i := range auctions {
		if err := e.processCountdown(ctx, &auctions[i]); err != nil {
			e.logger.Error("countdown pass: auction failed",
				zap.Int64("auctionID", auctions[i].ID), zap.Error(err))
		}
	}
}

func (e *Engine) processCountdown(ctx context.Context, a *model.Auction) error {
	remaining := a.EndTime.Sub(e.now())
	due := model.DueThresholds(model.CountdownLadder, remaining, a)
	if len(due) == 0 {
		return nil
	}

	bids, err := e.store.GetBidsByAuction(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("load bids: %w", err)
	}
	bidders := uniqueBidders(bids)

	for _, t := range due {
		msg := fmt.Sprintf("Auction for product %d ends in less than %s, current bid %s",
			a.ProductID, humanDuration(t.Before), formatCents(a.CurrentBidCents))

		for _, bidderID := range bidders {
			if err := e.notifier.Notify(ctx, bidderID, msg, model.NotifyAuctionCountdown, &a.ProductID); err != nil {
				e.logger.Warn("countdown notification failed",
					zap.Int64("auctionID", a.ID), zap.Int64("userID", bidderID), zap.Error(err))
			}
		}

		if err := e.store.MarkThresholdSent(ctx, a.ID, t.Key, model.AuctionStatusActive); err != nil {
			return fmt.Errorf("mark threshold %s: %w", t.Key, err)
		}
	}

	return nil
}

// RunFinishPass closes the bidding window of every active auction whose end
// time has passed.
func (e *Engine) RunFinishPass(ctx context.Context) {
	if !e.finishLock.TryLock() {
		e.logger.Warn("finish pass still running, skipping invocation")
		return
	}
	defer e.finishLock.Unlock()

	auctions, err := e.store.GetExpiredActiveAuctions(ctx, e.now())
	if err != nil {
		e.logger.Error("finish pass: load auctions", zap.Error(err))
		return
	}

	for i := range auctions {
		if err := e.finish(ctx, &auctions[i]); err != nil {
			e.logger.Error("finish pass: auction failed",
				zap.Int64("auctionID", auctions[i].ID), zap.Error(err))
		}
	}
}

// FinishAuction is the authoritative bidding-window close for a single
// auction, shared with the synchronous bid-intake path when it discovers an
// expired auction before the periodic sweep does. Auctions that are not
// active or not yet due are left untouched.
func (e *Engine) FinishAuction(ctx context.Context, auctionID int64) error {
	a, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.Status != model.AuctionStatusActive || a.EndTime.After(e.now()) {
		return nil
	}
	return e.finish(ctx, a)
}

func (e *Engine) finish(ctx context.Context, a *model.Auction) error {
	bids, err := e.store.GetBidsByAuction(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("load bids: %w", err)
	}

	if len(bids) == 0 {
		ok, err := e.store.ExpireActiveAuction(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("expire auction: %w", err)
		}
		if !ok {
			return nil
		}

		msg := fmt.Sprintf("Your auction for product %d ended without bids", a.ProductID)
		e.notify(ctx, a, a.SellerID, msg, model.NotifyAuctionExpired)
		return nil
	}

	winner := model.HighestBid(bids, nil)
	deadline := e.now().Add(model.PaymentWindow)

	ok, err := e.store.FinishToAwaitingPayment(ctx, a.ID, winner.BidderID, winner.AmountCents, deadline)
	if err != nil {
		return fmt.Errorf("finish auction: %w", err)
	}
	if !ok {
		return nil
	}

	msg := fmt.Sprintf("You won the auction for product %d with a bid of %s. Payment is due within 48 hours",
		a.ProductID, formatCents(winner.AmountCents))
	e.notify(ctx, a, winner.BidderID, msg, model.NotifyAuctionWon)

	lostMsg := fmt.Sprintf("The auction for product %d ended, the winning bid was %s",
		a.ProductID, formatCents(winner.AmountCents))
	for _, bidderID := range uniqueBidders(bids) {
		if bidderID == winner.BidderID {
			continue
		}
		e.notify(ctx, a, bidderID, lostMsg, model.NotifyAuctionLost)
	}
	return nil
}

// RunReminderPass notifies the current winner of every auction awaiting
// payment when a deadline threshold is crossed.
func (e *Engine) RunReminderPass(ctx context.Context) {
	if !e.reminderLock.TryLock() {
		e.logger.Warn("payment reminder pass still running, skipping invocation")
		return
	}
	defer e.reminderLock.Unlock()

	auctions, err := e.store.GetAuctionsByStatus(ctx, model.AuctionStatusAwaitingPayment)
	if err != nil {
		e.logger.Error("payment reminder pass: load auctions", zap.Error(err))
		return
	}

	for i := range auctions {
		if err := e.processReminder(ctx, &auctions[i]); err != nil {
			e.logger.Error("payment reminder pass: auction failed",
				zap.Int64("auctionID", auctions[i].ID), zap.Error(err))
		}
	}
}

func (e *Engine) processReminder(ctx context.Context, a *model.Auction) error {
	if a.WinnerID == nil || a.PaymentDeadline == nil {
		return nil
	}

	remaining := a.PaymentDeadline.Sub(e.now())
	due := model.DueThresholds(model.PaymentLadder, remaining, a)

	for _, t := range due {
		msg := fmt.Sprintf("Payment for product %d is due in less than %s", a.ProductID, humanDuration(t.Before))

		if err := e.notifier.Notify(ctx, *a.WinnerID, msg, model.NotifyPaymentReminder, &a.ProductID); err != nil {
			e.logger.Warn("payment reminder failed",
				zap.Int64("auctionID", a.ID), zap.Int64("userID", *a.WinnerID), zap.Error(err))
		}

		if err := e.store.MarkThresholdSent(ctx, a.ID, t.Key, model.AuctionStatusAwaitingPayment); err != nil {
			return fmt.Errorf("mark threshold %s: %w", t.Key, err)
		}
	}

	return nil
}

// RunDefaultPass handles missed payment deadlines: the defaulting winner is
// penalized and the next-highest remaining bidder takes over, or the auction
// expires when the pool is empty.
func (e *Engine) RunDefaultPass(ctx context.Context) {
	if !e.defaultLock.TryLock() {
		e.logger.Warn("payment default pass still running, skipping invocation")
		return
	}
	defer e.defaultLock.Unlock()

	auctions, err := e.store.GetOverduePaymentAuctions(ctx, e.now())
	if err != nil {
		e.logger.Error("payment default pass: load auctions", zap.Error(err))
		return
	}

	for i := range auctions {
		if err := e.processDefault(ctx, &auctions[i]); err != nil {
			e.logger.Error("payment default pass: auction failed",
				zap.Int64("auctionID", auctions[i].ID), zap.Error(err))
		}
	}
}

func (e *Engine) processDefault(ctx context.Context, a *model.Auction) error {
	if a.WinnerID == nil {
		return nil
	}
	defaulter := *a.WinnerID

	bids, err := e.store.GetBidsByAuction(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("load bids: %w", err)
	}

	// Bidders who defaulted in earlier rounds stay excluded for good.
	next := model.HighestBid(bids, func(bidderID int64) bool {
		return bidderID == defaulter || a.Disqualified(bidderID)
	})

	// The conditional transition runs before any side effect: if the winner
	// settled payment in the meantime, the update matches nothing and the
	// default never happened.
	if next == nil {
		ok, err := e.store.ExpireUnpaidAuction(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("expire unpaid auction: %w", err)
		}
		if !ok {
			return nil
		}

		e.penalize(ctx, a, defaulter)

		msg := fmt.Sprintf("Your auction for product %d expired: no remaining bidders after a missed payment", a.ProductID)
		e.notify(ctx, a, a.SellerID, msg, model.NotifyAuctionExpired)
		return nil
	}

	deadline := e.now().Add(model.PaymentWindow)
	ok, err := e.store.ReassignWinner(ctx, a.ID, defaulter, next.BidderID, next.AmountCents, deadline)
	if err != nil {
		return fmt.Errorf("reassign winner: %w", err)
	}
	if !ok {
		return nil
	}

	e.penalize(ctx, a, defaulter)

	msg := fmt.Sprintf("You are now the winner of the auction for product %d with a bid of %s. Payment is due within 48 hours",
		a.ProductID, formatCents(next.AmountCents))
	e.notify(ctx, a, next.BidderID, msg, model.NotifyAuctionWon)
	return nil
}

func (e *Engine) penalize(ctx context.Context, a *model.Auction, userID int64) {
	count, err := e.store.IncrementPenalty(ctx, userID)
	if err != nil {
		e.logger.Error("increment penalty failed",
			zap.Int64("auctionID", a.ID), zap.Int64("userID", userID), zap.Error(err))
		return
	}

	msg := fmt.Sprintf("You missed the payment deadline for product %d and received a penalty (total: %d)",
		a.ProductID, count)
	e.notify(ctx, a, userID, msg, model.NotifyPaymentPenalty)
}

func (e *Engine) notify(ctx context.Context, a *model.Auction, userID int64, msg string, category model.NotificationCategory) {
	if err := e.notifier.Notify(ctx, userID, msg, category, &a.ProductID); err != nil {
		e.logger.Warn("notification failed",
			zap.Int64("auctionID", a.ID), zap.Int64("userID", userID), zap.Error(err))
	}
}

func uniqueBidders(bids []model.Bid) []int64 {
	seen := make(map[int64]struct{}, len(bids))
	var res []int64
	for _, b := range bids {
		if _, ok := seen[b.BidderID]; ok {
			continue
		}
		seen[b.BidderID] = struct{}{}
		res = append(res, b.BidderID)
	}
	return res
}

func humanDuration(d time.Duration) string {
	if d >= time.Hour {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%.2f", float64(cents)/100)
}
