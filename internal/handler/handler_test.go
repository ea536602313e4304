package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/RubenMansilla/Nebripop-sub000/internal/marketerrors"
	"github.com/RubenMansilla/Nebripop-sub000/internal/middleware"
	"github.com/RubenMansilla/Nebripop-sub000/internal/model"
)

type stubService struct {
	registerUserID int64
	registerErr    error

	authUserID int64
	authErr    error

	balanceResp int64
	balanceErr  error

	depositErr error

	productResp *model.Product
	productErr  error

	productsResp []model.Product
	productsErr  error

	auctionResp *model.Auction
	auctionErr  error

	auctionsResp []model.Auction
	auctionsErr  error

	bidsResp []model.Bid

	deleteErr error

	placeBidResp   *model.Auction
	placeBidErr    error
	placeBidAmount int64

	purchaseResp *model.Purchase
	purchaseErr  error
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	return s.authUserID, s.authErr
}

func (s *stubService) GetWalletBalance(ctx context.Context, userID int64) (int64, error) {
	return s.balanceResp, s.balanceErr
}

func (s *stubService) Deposit(ctx context.Context, userID int64, amountCents int64) error {
	return s.depositErr
}

func (s *stubService) CreateProduct(ctx context.Context, ownerID int64, title, description string, priceCents int64) (*model.Product, error) {
	return s.productResp, s.productErr
}

func (s *stubService) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.productsResp, s.productsErr
}

func (s *stubService) CreateAuction(ctx context.Context, sellerID, productID int64, startingPriceCents int64, endTime time.Time) (*model.Auction, error) {
	return s.auctionResp, s.auctionErr
}

func (s *stubService) GetAuction(ctx context.Context, id int64) (*model.Auction, []model.Bid, error) {
	return s.auctionResp, s.bidsResp, s.auctionErr
}

func (s *stubService) ListAuctions(ctx context.Context, status *model.AuctionStatus) ([]model.Auction, error) {
	return s.auctionsResp, s.auctionsErr
}

func (s *stubService) DeleteAuction(ctx context.Context, sellerID, auctionID int64) error {
	return s.deleteErr
}

func (s *stubService) PlaceBid(ctx context.Context, auctionID, bidderID int64, amountCents int64) (*model.Auction, error) {
	s.placeBidAmount = amountCents
	return s.placeBidResp, s.placeBidErr
}

func (s *stubService) ProcessPayment(ctx context.Context, auctionID, userID int64, shippingAddress string) (*model.Purchase, error) {
	return s.purchaseResp, s.purchaseErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

// authedRequest builds a request carrying a valid bearer token for userID.
func authedRequest(t *testing.T, h *Handler, method, target string, body []byte, userID int64) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)

	token, err := h.authMiddleware.IssueToken(userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return req
}

func TestRegister_ReturnsToken(t *testing.T) {
	svc := &stubService{
		registerUserID: 42,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Login:    "user",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected non-empty token")
	}
}

func TestRegister_ConflictOnDuplicate(t *testing.T) {
	svc := &stubService{
		registerErr: marketerrors.ErrUserExists,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Login:    "user",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestLogin_UnauthorizedOnError(t *testing.T) {
	svc := &stubService{
		authErr: marketerrors.ErrUserNotFound,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Login:    "user",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestGetBalance_ConvertsCents(t *testing.T) {
	svc := &stubService{
		balanceResp: 12550,
	}
	h := newTestHandler(t, svc)

	req := authedRequest(t, h, http.MethodGet, "/api/user/balance", nil, 1)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetBalance))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp balanceResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Balance != 125.50 {
		t.Fatalf("balance = %v, want 125.50", resp.Balance)
	}
}

func TestGetBalance_UnauthorizedWithoutToken(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/user/balance", nil)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetBalance))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestPlaceBid_BadRequestOnLowBid(t *testing.T) {
	svc := &stubService{
		placeBidErr: marketerrors.ErrBidTooLow,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(bidRequest{Amount: 5})
	req := authedRequest(t, h, http.MethodPost, "/api/auctions/7/bid", body, 1)
	rec := httptest.NewRecorder()

	router := h.SetupRouter()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestPlaceBid_ForbiddenOnOwnAuction(t *testing.T) {
	svc := &stubService{
		placeBidErr: marketerrors.ErrOwnBid,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(bidRequest{Amount: 5})
	req := authedRequest(t, h, http.MethodPost, "/api/auctions/7/bid", body, 1)
	rec := httptest.NewRecorder()

	router := h.SetupRouter()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusForbidden)
	}
}

func TestPlaceBid_ConflictOnEndedAuction(t *testing.T) {
	svc := &stubService{
		placeBidErr: marketerrors.ErrInvalidState,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(bidRequest{Amount: 5})
	req := authedRequest(t, h, http.MethodPost, "/api/auctions/7/bid", body, 1)
	rec := httptest.NewRecorder()

	router := h.SetupRouter()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestPlaceBid_RoundsEuroAmountToCents(t *testing.T) {
	now := time.Now().UTC()
	svc := &stubService{
		placeBidResp: &model.Auction{
			ID:              7,
			Status:          model.AuctionStatusActive,
			CurrentBidCents: 15010,
			EndTime:         now.Add(time.Hour),
		},
	}
	h := newTestHandler(t, svc)

	// 150.10*100 is 15009.999... in float64; truncation would lose a cent.
	body, _ := json.Marshal(bidRequest{Amount: 150.10})
	req := authedRequest(t, h, http.MethodPost, "/api/auctions/7/bid", body, 1)
	rec := httptest.NewRecorder()

	router := h.SetupRouter()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if svc.placeBidAmount != 15010 {
		t.Fatalf("amount = %d cents, want 15010", svc.placeBidAmount)
	}
}

func TestGetAuction_JSONResponse(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	svc := &stubService{
		auctionResp: &model.Auction{
			ID:                 7,
			ProductID:          3,
			SellerID:           1,
			StartingPriceCents: 1000,
			CurrentBidCents:    1500,
			Status:             model.AuctionStatusActive,
			EndTime:            now.Add(time.Hour),
		},
		bidsResp: []model.Bid{
			{BidderID: 2, AmountCents: 1500, CreatedAt: now},
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/auctions/7", nil)
	rec := httptest.NewRecorder()

	router := h.SetupRouter()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp auctionDetailResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CurrentBid != 15.00 {
		t.Fatalf("current_bid = %v, want 15.00", resp.CurrentBid)
	}
	if len(resp.Bids) != 1 {
		t.Fatalf("bids = %d, want 1", len(resp.Bids))
	}
}

func TestListAuctions_RejectsUnknownStatus(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/auctions/?status=bogus", nil)
	rec := httptest.NewRecorder()

	router := h.SetupRouter()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestDeleteAuction_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := authedRequest(t, h, http.MethodDelete, "/api/auctions/7", nil, 1)
	rec := httptest.NewRecorder()

	router := h.SetupRouter()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
}

func TestDeleteAuction_ConflictWithBids(t *testing.T) {
	svc := &stubService{
		deleteErr: marketerrors.ErrAuctionHasBids,
	}
	h := newTestHandler(t, svc)

	req := authedRequest(t, h, http.MethodDelete, "/api/auctions/7", nil, 1)
	rec := httptest.NewRecorder()

	router := h.SetupRouter()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestPay_PaymentRequiredOnInsufficientFunds(t *testing.T) {
	svc := &stubService{
		purchaseErr: marketerrors.ErrInsufficientFunds,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(payRequest{ShippingAddress: "Calle Mayor 1"})
	req := authedRequest(t, h, http.MethodPost, "/api/auctions/7/pay", body, 2)
	rec := httptest.NewRecorder()

	router := h.SetupRouter()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusPaymentRequired)
	}
}

func TestPay_Success(t *testing.T) {
	auctionID := int64(7)
	svc := &stubService{
		purchaseResp: &model.Purchase{
			ID:              1,
			ProductID:       3,
			AuctionID:       &auctionID,
			BuyerID:         2,
			SellerID:        1,
			PriceCents:      1500,
			ShippingAddress: "Calle Mayor 1",
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(payRequest{ShippingAddress: "Calle Mayor 1"})
	req := authedRequest(t, h, http.MethodPost, "/api/auctions/7/pay", body, 2)
	rec := httptest.NewRecorder()

	router := h.SetupRouter()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp purchaseResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Price != 15.00 {
		t.Fatalf("price = %v, want 15.00", resp.Price)
	}
}
