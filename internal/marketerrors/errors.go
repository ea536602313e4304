// Package marketerrors defines the shared error taxonomy of the marketplace.
package marketerrors

import "errors"

// Lookup errors.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProductNotFound = errors.New("product not found")
	ErrAuctionNotFound = errors.New("auction not found")
)

// Business rule errors.
var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidState       = errors.New("operation not allowed in current auction state")
	ErrAuctionEnded       = errors.New("auction bidding window has ended")
	ErrBidTooLow          = errors.New("bid amount must exceed current bid")
	ErrOwnBid             = errors.New("seller cannot bid on own auction")
	ErrForbidden          = errors.New("operation not permitted for this user")
	ErrAuctionHasBids     = errors.New("cannot delete auction with active bids")
	ErrProductOnAuction   = errors.New("product already has an active auction")
	ErrProductUnavailable = errors.New("product unavailable for purchase")
	ErrInsufficientFunds  = errors.New("insufficient wallet balance")
)
