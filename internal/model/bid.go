package model

import (
	"fmt"
	"time"

	"github.com/RubenMansilla/Nebripop-sub000/internal/marketerrors"
)

// ValidateBid checks whether a bid may be placed against the auction as it
// currently stands. Checks run in severity order: a non-active auction is
// rejected before the bidding window is even considered, and ErrAuctionEnded
// is distinct from ErrInvalidState because the row still says active and the
// caller owns the resulting phase transition.
func ValidateBid(a *Auction, bidderID, amountCents int64, now time.Time) error {
	if a.Status != AuctionStatusActive {
		return marketerrors.ErrInvalidState
	}
	if !a.EndTime.After(now) {
		return marketerrors.ErrAuctionEnded
	}
	if bidderID == a.SellerID {
		return marketerrors.ErrOwnBid
	}
	if amountCents <= a.CurrentBidCents {
		return fmt.Errorf("%w: current bid is %d", marketerrors.ErrBidTooLow, a.CurrentBidCents)
	}
	return nil
}
