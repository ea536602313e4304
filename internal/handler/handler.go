// Package handler contains the HTTP handlers of the marketplace API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/RubenMansilla/Nebripop-sub000/internal/marketerrors"
	"github.com/RubenMansilla/Nebripop-sub000/internal/middleware"
	"github.com/RubenMansilla/Nebripop-sub000/internal/model"
)

// Service defines the business logic contract used by the HTTP handlers.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	GetWalletBalance(ctx context.Context, userID int64) (int64, error)
	Deposit(ctx context.Context, userID int64, amountCents int64) error
	CreateProduct(ctx context.Context, ownerID int64, title, description string, priceCents int64) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateAuction(ctx context.Context, sellerID, productID int64, startingPriceCents int64, endTime time.Time) (*model.Auction, error)
	GetAuction(ctx context.Context, id int64) (*model.Auction, []model.Bid, error)
	ListAuctions(ctx context.Context, status *model.AuctionStatus) ([]model.Auction, error)
	DeleteAuction(ctx context.Context, sellerID, auctionID int64) error
	PlaceBid(ctx context.Context, auctionID, bidderID int64, amountCents int64) (*model.Auction, error)
	ProcessPayment(ctx context.Context, auctionID, userID int64, shippingAddress string) (*model.Purchase, error)
}

// Handler implements the HTTP handlers of the marketplace API.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler instance.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// writeServiceError maps the shared error taxonomy onto HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	var status int
	switch {
	case errors.Is(err, marketerrors.ErrAuctionNotFound),
		errors.Is(err, marketerrors.ErrProductNotFound),
		errors.Is(err, marketerrors.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, marketerrors.ErrBidTooLow):
		status = http.StatusBadRequest
	case errors.Is(err, marketerrors.ErrOwnBid),
		errors.Is(err, marketerrors.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, marketerrors.ErrInvalidState),
		errors.Is(err, marketerrors.ErrAuctionEnded),
		errors.Is(err, marketerrors.ErrAuctionHasBids),
		errors.Is(err, marketerrors.ErrProductOnAuction),
		errors.Is(err, marketerrors.ErrProductUnavailable),
		errors.Is(err, marketerrors.ErrUserExists):
		status = http.StatusConflict
	case errors.Is(err, marketerrors.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	default:
		h.logger.Error(op, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Error(w, err.Error(), status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func urlID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// toCents converts a euro amount from the JSON boundary to cents. Rounding
// keeps a value like 150.10 from landing one cent short of a boundary-equal
// bid after the float multiplication.
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Register handles new user registration and returns an access token.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeServiceError(w, err, "register user error")
		return
	}

	token, err := h.authMiddleware.IssueToken(userID)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, tokenResponse{Token: token})
}

// Login authenticates a user and returns an access token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	token, err := h.authMiddleware.IssueToken(userID)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, tokenResponse{Token: token})
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

// GetBalance returns the wallet balance of the current user.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	balance, err := h.service.GetWalletBalance(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "get balance error")
		return
	}

	h.writeJSON(w, balanceResponse{Balance: float64(balance) / 100})
}

type depositRequest struct {
	Amount float64 `json:"amount"`
}

// Deposit adds funds to the wallet of the current user.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Amount <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.Deposit(r.Context(), userID, toCents(req.Amount)); err != nil {
		h.writeServiceError(w, err, "deposit error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type productRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

type productResponse struct {
	ID          int64   `json:"id"`
	OwnerID     int64   `json:"owner_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Sold        bool    `json:"sold"`
}

func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Title:       p.Title,
		Description: p.Description,
		Price:       float64(p.PriceCents) / 100,
		Sold:        p.Sold,
	}
}

// CreateProduct stores a new product listing for the current user.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Title == "" || req.Price <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.CreateProduct(r.Context(), userID, req.Title, req.Description, toCents(req.Price))
	if err != nil {
		h.writeServiceError(w, err, "create product error")
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, toProductResponse(p))
}

// ListProducts returns all unsold products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "list products error")
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}

	h.writeJSON(w, resp)
}

type createAuctionRequest struct {
	ProductID     int64   `json:"product_id"`
	StartingPrice float64 `json:"starting_price"`
	EndTime       string  `json:"end_time"`
}

type auctionResponse struct {
	ID              int64   `json:"id"`
	ProductID       int64   `json:"product_id"`
	SellerID        int64   `json:"seller_id"`
	WinnerID        *int64  `json:"winner_id,omitempty"`
	StartingPrice   float64 `json:"starting_price"`
	CurrentBid      float64 `json:"current_bid"`
	Status          string  `json:"status"`
	EndTime         string  `json:"end_time"`
	PaymentDeadline *string `json:"payment_deadline,omitempty"`
}

func toAuctionResponse(a *model.Auction) auctionResponse {
	resp := auctionResponse{
		ID:            a.ID,
		ProductID:     a.ProductID,
		SellerID:      a.SellerID,
		WinnerID:      a.WinnerID,
		StartingPrice: float64(a.StartingPriceCents) / 100,
		CurrentBid:    float64(a.CurrentBidCents) / 100,
		Status:        string(a.Status),
		EndTime:       a.EndTime.Format(time.RFC3339),
	}
	if a.PaymentDeadline != nil {
		d := a.PaymentDeadline.Format(time.RFC3339)
		resp.PaymentDeadline = &d
	}
	return resp
}

// CreateAuction opens an auction for a product owned by the current user.
func (h *Handler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "end_time must be RFC3339", http.StatusBadRequest)
		return
	}

	a, err := h.service.CreateAuction(r.Context(), userID, req.ProductID, toCents(req.StartingPrice), endTime)
	if err != nil {
		h.writeServiceError(w, err, "create auction error")
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, toAuctionResponse(a))
}

// ListAuctions returns auctions, optionally filtered by ?status=.
func (h *Handler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	var status *model.AuctionStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := model.AuctionStatus(v)
		if !s.Valid() {
			http.Error(w, "unknown auction status", http.StatusBadRequest)
			return
		}
		status = &s
	}

	auctions, err := h.service.ListAuctions(r.Context(), status)
	if err != nil {
		h.writeServiceError(w, err, "list auctions error")
		return
	}

	resp := make([]auctionResponse, 0, len(auctions))
	for i := range auctions {
		resp = append(resp, toAuctionResponse(&auctions[i]))
	}

	h.writeJSON(w, resp)
}

type bidResponse struct {
	BidderID  int64   `json:"bidder_id"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

type auctionDetailResponse struct {
	auctionResponse
	Bids []bidResponse `json:"bids"`
}

// GetAuction returns one auction with its bid history.
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	a, bids, err := h.service.GetAuction(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get auction error")
		return
	}

	resp := auctionDetailResponse{
		auctionResponse: toAuctionResponse(a),
		Bids:            make([]bidResponse, 0, len(bids)),
	}
	for _, b := range bids {
		resp.Bids = append(resp.Bids, bidResponse{
			BidderID:  b.BidderID,
			Amount:    float64(b.AmountCents) / 100,
			CreatedAt: b.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, resp)
}

// DeleteAuction removes the current user's active, bid-free auction.
func (h *Handler) DeleteAuction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteAuction(r.Context(), userID, id); err != nil {
		h.writeServiceError(w, err, "delete auction error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type bidRequest struct {
	Amount float64 `json:"amount"`
}

// PlaceBid records a bid of the current user against an auction.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Amount <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	a, err := h.service.PlaceBid(r.Context(), id, userID, toCents(req.Amount))
	if err != nil {
		h.writeServiceError(w, err, "place bid error")
		return
	}

	h.writeJSON(w, toAuctionResponse(a))
}

type payRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

type purchaseResponse struct {
	ID              int64   `json:"id"`
	ProductID       int64   `json:"product_id"`
	AuctionID       *int64  `json:"auction_id,omitempty"`
	Price           float64 `json:"price"`
	ShippingAddress string  `json:"shipping_address"`
}

// Pay settles payment for an auction won by the current user.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := urlID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.ShippingAddress == "" {
		http.Error(w, "shipping_address is required", http.StatusBadRequest)
		return
	}

	p, err := h.service.ProcessPayment(r.Context(), id, userID, req.ShippingAddress)
	if err != nil {
		h.writeServiceError(w, err, "process payment error")
		return
	}

	h.writeJSON(w, purchaseResponse{
		ID:              p.ID,
		ProductID:       p.ProductID,
		AuctionID:       p.AuctionID,
		Price:           float64(p.PriceCents) / 100,
		ShippingAddress: p.ShippingAddress,
	})
}
