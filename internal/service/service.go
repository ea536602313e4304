// Package service implements the business logic of the marketplace.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/RubenMansilla/Nebripop-sub000/internal/marketerrors"
	"github.com/RubenMansilla/Nebripop-sub000/internal/model"
)

// Repository describes the data access contract used by the service.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetWalletBalance(ctx context.Context, userID int64) (int64, error)
	CreateDeposit(ctx context.Context, userID int64, amountCents int64) error
	CreateProduct(ctx context.Context, ownerID int64, title, description string, priceCents int64) (*model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateAuction(ctx context.Context, sellerID, productID int64, startingPriceCents int64, endTime time.Time) (*model.Auction, error)
	GetAuction(ctx context.Context, id int64) (*model.Auction, error)
	ListAuctions(ctx context.Context, status *model.AuctionStatus) ([]model.Auction, error)
	DeleteAuction(ctx context.Context, id int64) error
	GetBidsByAuction(ctx context.Context, auctionID int64) ([]model.Bid, error)
	PlaceBid(ctx context.Context, auctionID, bidderID int64, amountCents int64, now time.Time) (*model.Auction, error)
	SettleAuctionPurchase(ctx context.Context, auctionID, buyerID int64, shippingAddress string) (*model.Purchase, error)
}

// Finisher is the authoritative bidding-window close shared with the
// lifecycle engine. The bid-intake path calls it when it discovers an
// auction past its end time before the periodic sweep does.
type Finisher interface {
	FinishAuction(ctx context.Context, auctionID int64) error
}

// Service contains the marketplace business logic.
type Service struct {
	repo     Repository
	finisher Finisher
	now      func() time.Time
}

// NewService creates a service backed by the given repository.
func NewService(repo Repository, finisher Finisher) *Service {
	return &Service{
		repo:     repo,
		finisher: finisher,
		now:      time.Now,
	}
}

// Close releases the service resources.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser registers a new user.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AuthenticateUser verifies the user's credentials and returns their id.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, errors.New("invalid credentials")
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// GetWalletBalance returns the user's wallet balance in cents.
func (s *Service) GetWalletBalance(ctx context.Context, userID int64) (int64, error) {
	return s.repo.GetWalletBalance(ctx, userID)
}

// Deposit adds funds to the user's wallet.
func (s *Service) Deposit(ctx context.Context, userID int64, amountCents int64) error {
	if amountCents <= 0 {
		return errors.New("deposit amount must be positive")
	}
	return s.repo.CreateDeposit(ctx, userID, amountCents)
}

// CreateProduct stores a new product listing for the user.
func (s *Service) CreateProduct(ctx context.Context, ownerID int64, title, description string, priceCents int64) (*model.Product, error) {
	if title == "" {
		return nil, errors.New("product title must not be empty")
	}
	if priceCents <= 0 {
		return nil, errors.New("product price must be positive")
	}
	return s.repo.CreateProduct(ctx, ownerID, title, description, priceCents)
}

// ListProducts returns all unsold products.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListProducts(ctx)
}

// CreateAuction opens an auction for a product owned by the seller. A product
// can carry at most one open auction at a time; the repository enforces the
// ownership and uniqueness checks transactionally.
func (s *Service) CreateAuction(ctx context.Context, sellerID, productID int64, startingPriceCents int64, endTime time.Time) (*model.Auction, error) {
	if startingPriceCents <= 0 {
		return nil, errors.New("starting price must be positive")
	}
	if !endTime.After(s.now()) {
		return nil, errors.New("auction end time must be in the future")
	}
	return s.repo.CreateAuction(ctx, sellerID, productID, startingPriceCents, endTime)
}

// GetAuction returns an auction together with its bid history.
func (s *Service) GetAuction(ctx context.Context, id int64) (*model.Auction, []model.Bid, error) {
	a, err := s.repo.GetAuction(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	bids, err := s.repo.GetBidsByAuction(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return a, bids, nil
}

// ListAuctions returns auctions, optionally filtered by status.
func (s *Service) ListAuctions(ctx context.Context, status *model.AuctionStatus) ([]model.Auction, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("unknown auction status %q", *status)
	}
	return s.repo.ListAuctions(ctx, status)
}

// DeleteAuction removes the seller's own auction while it is still active and
// bid-free.
func (s *Service) DeleteAuction(ctx context.Context, sellerID, auctionID int64) error {
	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.SellerID != sellerID {
		return marketerrors.ErrForbidden
	}
	return s.repo.DeleteAuction(ctx, auctionID)
}

// PlaceBid validates and records a bid against an active auction. When the
// bidding window has already lapsed, the auction goes through the same finish
// transition the periodic engine applies, and the bid is rejected.
func (s *Service) PlaceBid(ctx context.Context, auctionID, bidderID int64, amountCents int64) (*model.Auction, error) {
	a, err := s.repo.PlaceBid(ctx, auctionID, bidderID, amountCents, s.now())
	if err != nil {
		if errors.Is(err, marketerrors.ErrAuctionEnded) {
			if finishErr := s.finisher.FinishAuction(ctx, auctionID); finishErr != nil {
				return nil, fmt.Errorf("finish lapsed auction: %w", finishErr)
			}
			return nil, marketerrors.ErrInvalidState
		}
		return nil, err
	}
	return a, nil
}

// ProcessPayment settles an awaiting_payment auction on behalf of its winner.
// The repository performs the wallet transfer, product hand-over and status
// change in one transaction; a concurrent default sweep can win the race, in
// which case the caller sees ErrInvalidState.
func (s *Service) ProcessPayment(ctx context.Context, auctionID, userID int64, shippingAddress string) (*model.Purchase, error) {
	return s.repo.SettleAuctionPurchase(ctx, auctionID, userID, shippingAddress)
}
