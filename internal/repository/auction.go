package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/RubenMansilla/Nebripop-sub000/internal/marketerrors"
	"github.com/RubenMansilla/Nebripop-sub000/internal/model"
)

const auctionColumns = `id, product_id, seller_id, winner_id, starting_price, current_bid,
	 status, end_time, payment_deadline, notifications_sent, disqualified_bidder_ids, created_at`

func scanAuction(row pgx.Row) (*model.Auction, error) {
	var a model.Auction
	var status string
	err := row.Scan(
		&a.ID, &a.ProductID, &a.SellerID, &a.WinnerID, &a.StartingPriceCents,
		&a.CurrentBidCents, &status, &a.EndTime, &a.PaymentDeadline,
		&a.NotificationsSent, &a.DisqualifiedBidderIDs, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = model.AuctionStatus(status)
	return &a, nil
}

// CreateProduct stores a new product listing.
func (r *PostgresRepository) CreateProduct(ctx context.Context, ownerID int64, title, description string, priceCents int64) (*model.Product, error) {
	var p model.Product
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (owner_id, title, description, price) VALUES ($1, $2, $3, $4)
		 RETURNING id, owner_id, title, description, price, sold, created_at`,
		ownerID, title, description, priceCents,
	).Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.PriceCents, &p.Sold, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return &p, nil
}

// GetProduct returns a product by id.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	var p model.Product
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, title, description, price, sold, created_at FROM products WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.PriceCents, &p.Sold, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// ListProducts returns all unsold products, newest first.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, title, description, price, sold, created_at
		 FROM products
		 WHERE sold = FALSE
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.PriceCents, &p.Sold, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateAuction creates an active auction for a product. The transaction
// checks ownership and the one-open-auction-per-product invariant; the
// invariant lives here rather than in a constraint, so the product row is
// locked to keep concurrent creations honest.
func (r *PostgresRepository) CreateAuction(ctx context.Context, sellerID, productID int64, startingPriceCents int64, endTime time.Time) (*model.Auction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var ownerID int64
	var sold bool
	err = tx.QueryRow(ctx,
		`SELECT owner_id, sold FROM products WHERE id = $1 FOR UPDATE`,
		productID,
	).Scan(&ownerID, &sold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}

	if ownerID != sellerID {
		return nil, marketerrors.ErrForbidden
	}
	if sold {
		return nil, marketerrors.ErrProductUnavailable
	}

	var open int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM auctions WHERE product_id = $1 AND status IN ($2, $3)`,
		productID,
		string(model.AuctionStatusActive),
		string(model.AuctionStatusAwaitingPayment),
	).Scan(&open)
	if err != nil {
		return nil, fmt.Errorf("count open auctions: %w", err)
	}
	if open > 0 {
		return nil, marketerrors.ErrProductOnAuction
	}

	a, err := scanAuction(tx.QueryRow(ctx,
		`INSERT INTO auctions (product_id, seller_id, starting_price, current_bid, status, end_time)
		 VALUES ($1, $2, $3, $3, $4, $5)
		 RETURNING `+auctionColumns,
		productID, sellerID, startingPriceCents, string(model.AuctionStatusActive), endTime,
	))
	if err != nil {
		return nil, fmt.Errorf("insert auction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return a, nil
}

// GetAuction returns an auction by id.
func (r *PostgresRepository) GetAuction(ctx context.Context, id int64) (*model.Auction, error) {
	a, err := scanAuction(r.pool.QueryRow(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("get auction: %w", err)
	}
	return a, nil
}

// ListAuctions returns auctions newest first, optionally filtered by status.
func (r *PostgresRepository) ListAuctions(ctx context.Context, status *model.AuctionStatus) ([]model.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select auctions: %w", err)
	}
	defer rows.Close()

	return collectAuctions(rows)
}

func collectAuctions(rows pgx.Rows) ([]model.Auction, error) {
	var res []model.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		res = append(res, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// DeleteAuction removes an active, bid-free auction. The bid check and the
// delete run in one transaction so a racing bid cannot be orphaned.
func (r *PostgresRepository) DeleteAuction(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM auctions WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return marketerrors.ErrAuctionNotFound
		}
		return fmt.Errorf("lock auction: %w", err)
	}

	if model.AuctionStatus(status) != model.AuctionStatusActive {
		return marketerrors.ErrInvalidState
	}

	var bidCount int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM bids WHERE auction_id = $1`,
		id,
	).Scan(&bidCount)
	if err != nil {
		return fmt.Errorf("count bids: %w", err)
	}
	if bidCount > 0 {
		return marketerrors.ErrAuctionHasBids
	}

	if _, err := tx.Exec(ctx, `DELETE FROM auctions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete auction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBidsByAuction returns all bids of an auction ordered by creation time.
func (r *PostgresRepository) GetBidsByAuction(ctx context.Context, auctionID int64) ([]model.Bid, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, auction_id, bidder_id, amount, created_at
		 FROM bids
		 WHERE auction_id = $1
		 ORDER BY created_at`,
		auctionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select bids: %w", err)
	}
	defer rows.Close()

	var res []model.Bid
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.AmountCents, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		res = append(res, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// PlaceBid validates and records a bid against an active auction. The auction
// row stays locked for the whole check-insert-update sequence, which keeps
// current_bid monotonically non-decreasing under concurrent bidders.
// ErrAuctionEnded signals that the bidding window has lapsed but the row
// still says active; the caller owns the resulting phase transition.
func (r *PostgresRepository) PlaceBid(ctx context.Context, auctionID, bidderID int64, amountCents int64, now time.Time) (*model.Auction, error) {
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

	if err := model.ValidateBid(a, bidderID, amountCents, now); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO bids (auction_id, bidder_id, amount) VALUES ($1, $2, $3)`,
		auctionID, bidderID, amountCents,
	)
	if err != nil {
		return nil, fmt.Errorf("insert bid: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE auctions SET current_bid = $2 WHERE id = $1`,
		auctionID, amountCents,
	)
	if err != nil {
		return nil, fmt.Errorf("update current bid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	a.CurrentBidCents = amountCents
	return a, nil
}
