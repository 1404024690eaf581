package httpserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	campaignhttp "revuhub/contexts/campaign-ops/campaign-service/transport/http"
	jobhttp "revuhub/contexts/campaign-ops/job-service/transport/http"
	pricinghttp "revuhub/contexts/creator-network/pricing-service/transport/http"
	payouthttp "revuhub/contexts/finance-core/payout-engine/transport/http"
	wallethttp "revuhub/contexts/finance-core/token-ledger/transport/http"
	"revuhub/internal/app/bootstrap"
	"revuhub/internal/platform/httpserver"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	p := bootstrap.NewInMemoryPlatform(nil)
	server := httpserver.New(p.Wallet, p.Campaigns, p.Jobs, p.Payouts, p.Pricing, nil, ":0")
	return server.Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, headers map[string]string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response: %v (body %s)", method, path, err, rec.Body.String())
		}
	}
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) wallethttp.ErrorResponse {
	t.Helper()
	var resp wallethttp.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (body %s)", err, rec.Body.String())
	}
	return resp
}

func openCampaignRequest(budget int64) campaignhttp.OpenCampaignRequest {
	now := time.Now().UTC()
	return campaignhttp.OpenCampaignRequest{
		Title:           "Winter launch reviews",
		Description:     "Honest reviews for the winter lineup",
		TotalBudget:     budget,
		TargetReviewers: 5,
		StartDate:       now.Format(time.RFC3339),
		EndDate:         now.Add(30 * 24 * time.Hour).Format(time.RFC3339),
	}
}

func TestHTTPCampaignJobFlow(t *testing.T) {
	handler := newTestHandler(t)
	shopHeaders := map[string]string{"X-Shop-Id": "shop-1"}
	shopActorHeaders := map[string]string{"X-User-Id": "shop-1"}
	creatorHeaders := map[string]string{"X-User-Id": "creator-1"}

	var credit wallethttp.CreditResponse
	rec := doJSON(t, handler, http.MethodPost, "/api/shops/shop-1/wallet/credit", nil,
		wallethttp.CreditRequest{Amount: 5000}, &credit)
	if rec.Code != http.StatusCreated {
		t.Fatalf("credit status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	if credit.Data.Remaining != 5000 {
		t.Fatalf("credited batch remaining = %d, want 5000", credit.Data.Remaining)
	}

	var campaign campaignhttp.OpenCampaignResponse
	rec = doJSON(t, handler, http.MethodPost, "/api/campaigns", shopHeaders, openCampaignRequest(3000), &campaign)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open campaign status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	campaignID := campaign.Data.CampaignID
	if campaignID == "" {
		t.Fatal("open campaign returned empty campaign_id")
	}

	var balance wallethttp.BalanceResponse
	rec = doJSON(t, handler, http.MethodGet, "/api/shops/shop-1/wallet/balance", nil, nil, &balance)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance status = %d, want 200", rec.Code)
	}
	if balance.Data.Balance != 2000 {
		t.Fatalf("balance after escrow = %d, want 2000", balance.Data.Balance)
	}

	var job jobhttp.JobResponse
	rec = doJSON(t, handler, http.MethodPost, "/api/campaigns/"+campaignID+"/jobs", creatorHeaders,
		jobhttp.AssignmentRequest{CreatorID: "creator-1", AgreedPrice: 1000}, &job)
	if rec.Code != http.StatusCreated {
		t.Fatalf("accept job status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	jobID := job.Data.JobID
	if job.Data.Status != "accepted" {
		t.Fatalf("new job status = %q, want accepted", job.Data.Status)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/jobs/"+jobID+"/start", creatorHeaders, nil, &job)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/jobs/"+jobID+"/submit", creatorHeaders,
		jobhttp.SubmitRequest{ReviewLink: "https://example.com/reviews/1"}, &job)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/jobs/"+jobID+"/approve", shopActorHeaders, nil, &job)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if job.Data.Status != "completed" {
		t.Fatalf("approved job status = %q, want completed", job.Data.Status)
	}
	if job.Data.PlatformCommission != 200 || job.Data.CreatorEarning != 800 {
		t.Fatalf("payout split = %d/%d, want 200/800", job.Data.PlatformCommission, job.Data.CreatorEarning)
	}

	var settlement payouthttp.SettlementResponse
	rec = doJSON(t, handler, http.MethodGet, "/api/jobs/"+jobID+"/settlement", nil, nil, &settlement)
	if rec.Code != http.StatusOK {
		t.Fatalf("settlement status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if settlement.Data.GrossAmount != 1000 || settlement.Data.CreatorEarning != 800 {
		t.Fatalf("settlement = gross %d earning %d, want 1000/800",
			settlement.Data.GrossAmount, settlement.Data.CreatorEarning)
	}

	var earnings payouthttp.EarningsSummaryResponse
	rec = doJSON(t, handler, http.MethodGet, "/api/creators/creator-1/earnings", nil, nil, &earnings)
	if rec.Code != http.StatusOK {
		t.Fatalf("earnings status = %d, want 200", rec.Code)
	}
	if earnings.Data.TotalEarned != 800 {
		t.Fatalf("total earned = %d, want 800", earnings.Data.TotalEarned)
	}
}

func TestHTTPErrorMappings(t *testing.T) {
	handler := newTestHandler(t)
	shopHeaders := map[string]string{"X-Shop-Id": "shop-1"}
	creatorHeaders := map[string]string{"X-User-Id": "creator-1"}

	rec := doJSON(t, handler, http.MethodPost, "/api/shops/shop-1/wallet/credit", nil,
		wallethttp.CreditRequest{Amount: 0}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("zero credit status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/campaigns", nil, openCampaignRequest(100), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing shop header status = %d, want 401", rec.Code)
	}

	doJSON(t, handler, http.MethodPost, "/api/shops/shop-1/wallet/credit", nil,
		wallethttp.CreditRequest{Amount: 500}, nil)
	rec = doJSON(t, handler, http.MethodPost, "/api/campaigns", shopHeaders, openCampaignRequest(3000), nil)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("underfunded campaign status = %d, want 402 (body %s)", rec.Code, rec.Body.String())
	}
	if code := decodeError(t, rec).Code; code != "insufficient_balance" {
		t.Fatalf("underfunded campaign code = %q, want insufficient_balance", code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/campaigns/missing", nil, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown campaign status = %d, want 404", rec.Code)
	}

	doJSON(t, handler, http.MethodPost, "/api/shops/shop-1/wallet/credit", nil,
		wallethttp.CreditRequest{Amount: 2500}, nil)
	var campaign campaignhttp.OpenCampaignResponse
	doJSON(t, handler, http.MethodPost, "/api/campaigns", shopHeaders, openCampaignRequest(2000), &campaign)
	campaignID := campaign.Data.CampaignID

	assignment := jobhttp.AssignmentRequest{CreatorID: "creator-1", AgreedPrice: 600}
	var job jobhttp.JobResponse
	rec = doJSON(t, handler, http.MethodPost, "/api/campaigns/"+campaignID+"/jobs", creatorHeaders, assignment, &job)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first assignment status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/campaigns/"+campaignID+"/jobs", creatorHeaders, assignment, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate assignment status = %d, want 409", rec.Code)
	}
	if code := decodeError(t, rec).Code; code != "duplicate_assignment" {
		t.Fatalf("duplicate assignment code = %q, want duplicate_assignment", code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/campaigns/"+campaignID+"/jobs",
		map[string]string{"X-User-Id": "creator-2"},
		jobhttp.AssignmentRequest{CreatorID: "creator-2", AgreedPrice: 1500}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("exhausted budget status = %d, want 409", rec.Code)
	}
	if code := decodeError(t, rec).Code; code != "budget_exhausted" {
		t.Fatalf("exhausted budget code = %q, want budget_exhausted", code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/jobs/"+job.Data.JobID+"/approve",
		map[string]string{"X-User-Id": "shop-1"}, nil, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("premature approve status = %d, want 422", rec.Code)
	}
	if code := decodeError(t, rec).Code; code != "invalid_transition" {
		t.Fatalf("premature approve code = %q, want invalid_transition", code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/jobs/"+job.Data.JobID+"/submit", creatorHeaders,
		jobhttp.SubmitRequest{ReviewLink: "ftp://example.com/review"}, nil)
	if rec.Code != http.StatusUnprocessableEntity && rec.Code != http.StatusBadRequest {
		t.Fatalf("bad review link status = %d, want 400 or 422", rec.Code)
	}
}

func TestHTTPCreditIdempotencyReplay(t *testing.T) {
	handler := newTestHandler(t)
	headers := map[string]string{"Idempotency-Key": "purchase-001"}

	var first wallethttp.CreditResponse
	rec := doJSON(t, handler, http.MethodPost, "/api/shops/shop-1/wallet/credit", headers,
		wallethttp.CreditRequest{Amount: 1200}, &first)
	if rec.Code != http.StatusCreated {
		t.Fatalf("credit status = %d, want 201", rec.Code)
	}

	var second wallethttp.CreditResponse
	rec = doJSON(t, handler, http.MethodPost, "/api/shops/shop-1/wallet/credit", headers,
		wallethttp.CreditRequest{Amount: 1200}, &second)
	if rec.Code != http.StatusCreated {
		t.Fatalf("replayed credit status = %d, want 201", rec.Code)
	}
	if !second.Replayed {
		t.Fatal("replayed credit did not report replay")
	}
	if second.Data.BatchID != first.Data.BatchID {
		t.Fatalf("replayed batch = %q, want %q", second.Data.BatchID, first.Data.BatchID)
	}

	var balance wallethttp.BalanceResponse
	doJSON(t, handler, http.MethodGet, "/api/shops/shop-1/wallet/balance", nil, nil, &balance)
	if balance.Data.Balance != 1200 {
		t.Fatalf("balance after replay = %d, want 1200", balance.Data.Balance)
	}
}

func TestHTTPPricingRoutes(t *testing.T) {
	handler := newTestHandler(t)

	for _, bounds := range [][2]int64{{500, 900}, {800, 1200}} {
		rec := doJSON(t, handler, http.MethodPost, "/api/creators/creator-1/pricing", nil,
			pricinghttp.OpenRangeRequest{PriceMin: bounds[0], PriceMax: bounds[1]}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("open range %d-%d status = %d (body %s)", bounds[0], bounds[1], rec.Code, rec.Body.String())
		}
	}

	var current pricinghttp.PriceRangeResponse
	rec := doJSON(t, handler, http.MethodGet, "/api/creators/creator-1/pricing", nil, nil, &current)
	if rec.Code != http.StatusOK {
		t.Fatalf("current range status = %d, want 200", rec.Code)
	}
	if current.Data.PriceMin != 800 || current.Data.PriceMax != 1200 {
		t.Fatalf("current range = %d-%d, want 800-1200", current.Data.PriceMin, current.Data.PriceMax)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/creators/creator-1/pricing", nil,
		pricinghttp.OpenRangeRequest{PriceMin: 900, PriceMax: 500}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted range status = %d, want 400", rec.Code)
	}

	var history pricinghttp.PriceHistoryResponse
	rec = doJSON(t, handler, http.MethodGet, "/api/creators/creator-1/pricing/history", nil, nil, &history)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, want 200", rec.Code)
	}
	if len(history.Data) != 2 {
		t.Fatalf("history length = %d, want 2", len(history.Data))
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/creators/creator-2/pricing", nil, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unpriced creator status = %d, want 404", rec.Code)
	}
}
