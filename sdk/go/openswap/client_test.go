package openswap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewClient("localhost:8080", nil); err == nil {
		t.Fatal("expected error for url without scheme")
	}
}

func TestSubmitSwap(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/swaps" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body SwapSubmission
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("unexpected body: %v", err)
		}
		if body.Direction != "sell" || body.AmountIn != "12.5" {
			t.Fatalf("unexpected submission: %+v", body)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(Swap{ID: "swap-1", Status: "pending", Direction: body.Direction})
	})

	created, err := client.SubmitSwap(context.Background(), SwapSubmission{Token: "0x1", AmountIn: "12.5", Direction: "sell"})
	if err != nil {
		t.Fatalf("submit swap: %v", err)
	}
	if created.ID != "swap-1" || created.Finished() {
		t.Fatalf("unexpected swap: %+v", created)
	}
}

func TestWaitForSwapPollsUntilFinished(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/swaps/swap-1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		status := "running"
		var result *SwapResult
		if calls.Add(1) >= 3 {
			status = "succeeded"
			result = &SwapResult{Success: true, TxHash: "0xabc", Message: "Successfully swapped ETH for tokens. Transaction: 0xabc"}
		}
		_ = json.NewEncoder(w).Encode(Swap{ID: "swap-1", Status: status, Result: result})
	})

	done, err := client.WaitForSwap(context.Background(), "swap-1", time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != "succeeded" || done.Result == nil || done.Result.TxHash != "0xabc" {
		t.Fatalf("unexpected swap: %+v", done)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", calls.Load())
	}
}

func TestQuoteKeepsBigAmounts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("direction") != "buy" || r.URL.Query().Get("amount_in") != "1" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"token":"0x1","direction":"buy","amount_in":1000000000000000000,"quoted_out":500000000000000000000,"min_amount_out":475000000000000000000}`))
	})

	quote, err := client.Quote(context.Background(), "0x1", "1", "buy")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.MinAmountOut.String() != "475000000000000000000" {
		t.Fatalf("unexpected min amount: %s", quote.MinAmountOut)
	}
}

func TestGetSwapError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(struct {
			Error APIError `json:"error"`
		}{Error: APIError{Code: "TASK_NOT_FOUND", Message: "task not found"}})
	})

	_, err := client.GetSwap(context.Background(), "swap-404")
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != "TASK_NOT_FOUND" || !IsNotFound(err) {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestPlainTextErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
	})

	_, err := client.WalletInfo(context.Background(), "0xabc")
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.StatusCode != http.StatusServiceUnavailable || apiErr.Message != "服务已关闭" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWalletInfoWithTokens(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/wallets/0xabc" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query()["token"]; len(got) != 2 || got[0] != "0x01" || got[1] != "0x02" {
			t.Fatalf("unexpected token query: %v", got)
		}
		_ = json.NewEncoder(w).Encode(WalletInfo{
			Address: "0xabc",
			Balance: "1.5",
			Tokens:  []TokenBalance{{Token: "0x01", Symbol: "USDC", Decimals: 6, Balance: "12.5", BalanceRaw: "12500000"}},
		})
	})

	info, err := client.WalletInfo(context.Background(), "0xabc", "0x01", "0x02")
	if err != nil {
		t.Fatalf("wallet info: %v", err)
	}
	if len(info.Tokens) != 1 || info.Tokens[0].Symbol != "USDC" || info.Tokens[0].Balance != "12.5" {
		t.Fatalf("unexpected tokens: %+v", info.Tokens)
	}
}
