package model

import (
	"errors"
	"testing"
	"time"

	"github.com/RubenMansilla/Nebripop-sub000/internal/marketerrors"
)

func TestValidateBid(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	base := Auction{
		ID:                 1,
		SellerID:           1,
		StartingPriceCents: 10000,
		CurrentBidCents:    10000,
		Status:             AuctionStatusActive,
		EndTime:            now.Add(time.Hour),
	}

	tests := []struct {
		name        string
		mutate      func(a *Auction)
		bidderID    int64
		amountCents int64
		wantErr     error
	}{
		{
			name:        "valid bid above current",
			bidderID:    2,
			amountCents: 10001,
		},
		{
			name:        "amount equal to current bid",
			bidderID:    2,
			amountCents: 10000,
			wantErr:     marketerrors.ErrBidTooLow,
		},
		{
			name:        "amount below current bid",
			bidderID:    2,
			amountCents: 9000,
			wantErr:     marketerrors.ErrBidTooLow,
		},
		{
			name:        "seller bids on own auction",
			bidderID:    1,
			amountCents: 11000,
			wantErr:     marketerrors.ErrOwnBid,
		},
		{
			name:        "awaiting payment auction",
			mutate:      func(a *Auction) { a.Status = AuctionStatusAwaitingPayment },
			bidderID:    2,
			amountCents: 11000,
			wantErr:     marketerrors.ErrInvalidState,
		},
		{
			name:        "expired auction",
			mutate:      func(a *Auction) { a.Status = AuctionStatusExpired },
			bidderID:    2,
			amountCents: 11000,
			wantErr:     marketerrors.ErrInvalidState,
		},
		{
			name:        "end time exactly now",
			mutate:      func(a *Auction) { a.EndTime = now },
			bidderID:    2,
			amountCents: 11000,
			wantErr:     marketerrors.ErrAuctionEnded,
		},
		{
			name:        "end time in the past",
			mutate:      func(a *Auction) { a.EndTime = now.Add(-time.Minute) },
			bidderID:    2,
			amountCents: 11000,
			wantErr:     marketerrors.ErrAuctionEnded,
		},
		{
			name: "lapsed window wins over own bid",
			mutate: func(a *Auction) {
				a.EndTime = now.Add(-time.Minute)
			},
			bidderID:    1,
			amountCents: 11000,
			wantErr:     marketerrors.ErrAuctionEnded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base
			if tt.mutate != nil {
				tt.mutate(&a)
			}

			err := ValidateBid(&a, tt.bidderID, tt.amountCents, now)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateBid() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateBid() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
