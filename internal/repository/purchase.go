package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/RubenMansilla/Nebripop-sub000/internal/marketerrors"
	"github.com/RubenMansilla/Nebripop-sub000/internal/model"
)

// SettleAuctionPurchase finalizes payment for an awaiting_payment auction in
// one transaction: wallet debit and credit, product marked sold, auction moved
// to sold, purchase record created. The buyer row is locked to serialize
// wallet spending (same discipline as a plain withdrawal), and the final
// status update is conditional on awaiting_payment so that at most one of
// settlement and the default sweep wins past the deadline instant.
func (r *PostgresRepository) SettleAuctionPurchase(ctx context.Context, auctionID, buyerID int64, shippingAddress string) (*model.Purchase, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := scanAuction(tx.QueryRow(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1 FOR UPDATE`,
		auctionID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("lock auction: %w", err)
	}

	if a.Status != model.AuctionStatusAwaitingPayment {
		return nil, marketerrors.ErrInvalidState
	}
	if a.WinnerID == nil || *a.WinnerID != buyerID {
		return nil, marketerrors.ErrForbidden
	}

	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, buyerID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("lock buyer: %w", err)
	}

	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM wallet_entries WHERE user_id = $1`,
		buyerID,
	).Scan(&balance)
	if err != nil {
		return nil, fmt.Errorf("sum wallet entries: %w", err)
	}
	if balance < a.CurrentBidCents {
		return nil, marketerrors.ErrInsufficientFunds
	}

	var sold bool
	err = tx.QueryRow(ctx,
		`SELECT sold FROM products WHERE id = $1 FOR UPDATE`,
		a.ProductID,
	).Scan(&sold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}
	if sold {
		return nil, marketerrors.ErrProductUnavailable
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO wallet_entries (user_id, amount, kind) VALUES ($1, $2, $3), ($4, $5, $6)`,
		buyerID, -a.CurrentBidCents, string(model.WalletEntryPurchase),
		a.SellerID, a.CurrentBidCents, string(model.WalletEntrySale),
	)
	if err != nil {
		return nil, fmt.Errorf("insert wallet entries: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE products SET sold = TRUE WHERE id = $1`, a.ProductID); err != nil {
		return nil, fmt.Errorf("mark product sold: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE auctions SET status = $2, payment_deadline = NULL WHERE id = $1 AND status = $3`,
		auctionID,
		string(model.AuctionStatusSold),
		string(model.AuctionStatusAwaitingPayment),
	)
	if err != nil {
		return nil, fmt.Errorf("mark auction sold: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, marketerrors.ErrInvalidState
	}

	var p model.Purchase
	err = tx.QueryRow(ctx,
		`INSERT INTO purchases (product_id, auction_id, buyer_id, seller_id, price, shipping_address)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, product_id, auction_id, buyer_id, seller_id, price, shipping_address, created_at`,
		a.ProductID, auctionID, buyerID, a.SellerID, a.CurrentBidCents, shippingAddress,
	).Scan(&p.ID, &p.ProductID, &p.AuctionID, &p.BuyerID, &p.SellerID, &p.PriceCents, &p.ShippingAddress, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert purchase: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &p, nil
}
