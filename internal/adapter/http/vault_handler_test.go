package http

import (
	stdhttp "net/http"
	"strings"
	"testing"

	"github.com/gabrieltemtsen/clenja/internal/testutil/ledgertest"
)

type poolBody struct {
	TotalAssets        string `json:"total_assets"`
	TotalShares        string `json:"total_shares"`
	OutstandingLoans   string `json:"outstanding_loans"`
	AvailableLiquidity string `json:"available_liquidity"`
	SharePrice         string `json:"share_price"`
	LoanManager        string `json:"loan_manager"`
}

func TestDeposit_Handler(t *testing.T) {
	ts := newTestServer(t)
	ts.s.Mint(t, ledgertest.Alice, ledgertest.Units(10))

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantMsg  string
	}{
		{"invalid json", "{", stdhttp.StatusBadRequest, ""},
		{"missing amount", map[string]any{}, stdhttp.StatusUnprocessableEntity, "is required"},
		{"fractional amount", map[string]any{"amount": "1.5"}, stdhttp.StatusUnprocessableEntity, "unsigned integer"},
		{"bad receiver", map[string]any{"amount": "1", "receiver": "bob"}, stdhttp.StatusUnprocessableEntity, "20-byte hex"},
		{"zero amount", map[string]any{"amount": "0"}, stdhttp.StatusBadRequest, ""},
		{"more than balance", map[string]any{"amount": "10000001"}, stdhttp.StatusConflict, ""},
		{"ok", map[string]any{"amount": "10000000", "receiver": ledgertest.Bob}, stdhttp.StatusOK, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(stdhttp.MethodPost, "/v1/pool/deposit", ledgertest.Alice, tc.body)
			expectCode(t, rec, tc.wantCode)
			if tc.wantMsg != "" {
				er := decode[ErrorResponse](t, rec)
				found := false
				for _, d := range er.Details {
					found = found || strings.Contains(d.Message, tc.wantMsg)
				}
				if !found {
					t.Fatalf("expected detail %q, got %+v", tc.wantMsg, er)
				}
			}
		})
	}

	bal := decode[map[string]string](t, ts.do(stdhttp.MethodGet, "/v1/pool/balances/"+ledgertest.Bob, "", nil))
	if bal["shares"] != "10000000" || bal["assets"] != "10000000" {
		t.Fatalf("unexpected Bob position: %+v", bal)
	}
}

func TestPool_ViewsAndWithdraw(t *testing.T) {
	ts := newTestServer(t)
	ts.seedPool(t)

	rec := ts.do(stdhttp.MethodGet, "/v1/pool", "", nil)
	expectCode(t, rec, stdhttp.StatusOK)
	p := decode[poolBody](t, rec)
	if p.TotalAssets != "3000000000" || p.TotalShares != "3000000000" || p.SharePrice != "1000000000000000000" {
		t.Fatalf("unexpected pool: %+v", p)
	}
	if p.LoanManager != ledgertest.Manager {
		t.Fatalf("loan manager %q", p.LoanManager)
	}

	conv := decode[map[string]string](t, ts.do(stdhttp.MethodGet, "/v1/pool/convert?assets=42", "", nil))
	if conv["shares"] != "42" {
		t.Fatalf("convert: %+v", conv)
	}
	expectCode(t, ts.do(stdhttp.MethodGet, "/v1/pool/convert", "", nil), stdhttp.StatusBadRequest)
	expectCode(t, ts.do(stdhttp.MethodGet, "/v1/pool/convert?shares=abc", "", nil), stdhttp.StatusBadRequest)

	rec = ts.do(stdhttp.MethodPost, "/v1/pool/withdraw", ledgertest.Bob, map[string]any{"amount": "1", "owner": ledgertest.Alice})
	expectCode(t, rec, stdhttp.StatusForbidden)

	rec = ts.do(stdhttp.MethodPost, "/v1/pool/withdraw", ledgertest.Alice, map[string]any{"amount": "3000000001"})
	expectCode(t, rec, stdhttp.StatusConflict)
	if er := decode[ErrorResponse](t, rec); er.Code != "resource" {
		t.Fatalf("expected resource error, got %+v", er)
	}

	rec = ts.do(stdhttp.MethodPost, "/v1/pool/withdraw", ledgertest.Alice, map[string]any{"amount": "1000000000"})
	expectCode(t, rec, stdhttp.StatusOK)
	if got := decode[map[string]string](t, rec); got["shares_burned"] != "1000000000" {
		t.Fatalf("unexpected burn: %+v", got)
	}

	events := decode[[]map[string]any](t, ts.do(stdhttp.MethodGet, "/v1/events?limit=1", "", nil))
	if len(events) != 1 || events[0]["kind"] != "withdraw" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestBindLoanManager_Handler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(stdhttp.MethodPost, "/v1/pool/loan-manager", ledgertest.Alice, map[string]any{"loan_manager": ledgertest.Carol})
	expectCode(t, rec, stdhttp.StatusForbidden)

	rec = ts.do(stdhttp.MethodPost, "/v1/pool/loan-manager", ledgertest.Owner, map[string]any{"loan_manager": ledgertest.Carol})
	expectCode(t, rec, stdhttp.StatusConflict)
	if er := decode[ErrorResponse](t, rec); er.Code != "state" {
		t.Fatalf("expected state error, got %+v", er)
	}
}
