package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/RubenMansilla/Nebripop-sub000/internal/model"
)

// Reconciliation sweep queries and phase transitions. Every transition is a
// single conditional UPDATE keyed on the expected current status; a false
// return means some other actor moved the auction first and the caller must
// not apply its side effects.

// GetAuctionsByStatus returns all auctions in the given status.
func (r *PostgresRepository) GetAuctionsByStatus(ctx context.Context, status model.AuctionStatus) ([]model.Auction, error) {
	var res []model.Auction
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+auctionColumns+` FROM auctions WHERE status = $1 ORDER BY end_time`,
			string(status),
		)
		if err != nil {
			return fmt.Errorf("select auctions by status: %w", err)
		}
		defer rows.Close()

		res, err = collectAuctions(rows)
		return err
	})
	return res, err
}

// GetExpiredActiveAuctions returns active auctions whose bidding window has
// closed.
func (r *PostgresRepository) GetExpiredActiveAuctions(ctx context.Context, now time.Time) ([]model.Auction, error) {
	var res []model.Auction
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+auctionColumns+` FROM auctions WHERE status = $1 AND end_time < $2 ORDER BY end_time`,
			string(model.AuctionStatusActive), now,
		)
		if err != nil {
			return fmt.Errorf("select expired active auctions: %w", err)
		}
		defer rows.Close()

		res, err = collectAuctions(rows)
		return err
	})
	return res, err
}

// GetOverduePaymentAuctions returns awaiting_payment auctions whose payment
// deadline has passed.
func (r *PostgresRepository) GetOverduePaymentAuctions(ctx context.Context, now time.Time) ([]model.Auction, error) {
	var res []model.Auction
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+auctionColumns+` FROM auctions
			 WHERE status = $1 AND payment_deadline IS NOT NULL AND payment_deadline < $2
			 ORDER BY payment_deadline`,
			string(model.AuctionStatusAwaitingPayment), now,
		)
		if err != nil {
			return fmt.Errorf("select overdue payment auctions: %w", err)
		}
		defer rows.Close()

		res, err = collectAuctions(rows)
		return err
	})
	return res, err
}

// MarkThresholdSent records a fired threshold key for the current phase.
// The append is conditional on the status the sweep observed and on the key
// not being present yet, so replays and overlapping sweeps cannot duplicate it.
func (r *PostgresRepository) MarkThresholdSent(ctx context.Context, auctionID int64, key string, status model.AuctionStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE auctions
		 SET notifications_sent = array_append(notifications_sent, $2)
		 WHERE id = $1 AND status = $3 AND NOT ($2 = ANY (notifications_sent))`,
		auctionID, key, string(status),
	)
	if err != nil {
		return fmt.Errorf("mark threshold sent: %w", err)
	}
	return nil
}

// FinishToAwaitingPayment closes the bidding window of an active auction:
// winner set, current bid pinned to the winning amount, payment deadline
// started, notification keys cleared for the new phase.
func (r *PostgresRepository) FinishToAwaitingPayment(ctx context.Context, auctionID, winnerID int64, amountCents int64, deadline time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE auctions
		 SET status = $2, winner_id = $3, current_bid = $4, payment_deadline = $5, notifications_sent = '{}'
		 WHERE id = $1 AND status = $6`,
		auctionID,
		string(model.AuctionStatusAwaitingPayment),
		winnerID, amountCents, deadline,
		string(model.AuctionStatusActive),
	)
	if err != nil {
		return false, fmt.Errorf("finish auction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireActiveAuction closes a bid-free active auction.
func (r *PostgresRepository) ExpireActiveAuction(ctx context.Context, auctionID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE auctions SET status = $2, notifications_sent = '{}' WHERE id = $1 AND status = $3`,
		auctionID,
		string(model.AuctionStatusExpired),
		string(model.AuctionStatusActive),
	)
	if err != nil {
		return false, fmt.Errorf("expire active auction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireUnpaidAuction retires an awaiting_payment auction whose bid pool ran
// out: winner and deadline are nulled. The status condition makes this the
// losing side of the race against payment settlement when the winner pays at
// the last instant.
func (r *PostgresRepository) ExpireUnpaidAuction(ctx context.Context, auctionID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE auctions
		 SET status = $2, winner_id = NULL, payment_deadline = NULL, notifications_sent = '{}'
		 WHERE id = $1 AND status = $3`,
		auctionID,
		string(model.AuctionStatusExpired),
		string(model.AuctionStatusAwaitingPayment),
	)
	if err != nil {
		return false, fmt.Errorf("expire unpaid auction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReassignWinner promotes the next bidder after a payment default. The
// defaulting winner goes onto the disqualified list, the payment ladder and
// deadline restart for the new winner.
func (r *PostgresRepository) ReassignWinner(ctx context.Context, auctionID, prevWinnerID, newWinnerID int64, amountCents int64, deadline time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE auctions
		 SET winner_id = $3, current_bid = $4, payment_deadline = $5, notifications_sent = '{}',
		     disqualified_bidder_ids = array_append(disqualified_bidder_ids, $2)
		 WHERE id = $1 AND status = $6 AND winner_id = $2`,
		auctionID, prevWinnerID, newWinnerID, amountCents, deadline,
		string(model.AuctionStatusAwaitingPayment),
	)
	if err != nil {
		return false, fmt.Errorf("reassign winner: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
