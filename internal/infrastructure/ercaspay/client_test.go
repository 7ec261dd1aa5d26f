package ercaspay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", SecretKey: "ECRS-TEST-SK", Timeout: time.Second})
}

func TestClient_Verify(t *testing.T) {
	t.Run("successful transaction", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/v1/payment/transaction/verify/ERCS|R1", r.URL.Path)
			assert.Equal(t, "Bearer ECRS-TEST-SK", r.Header.Get("Authorization"))
			w.Write([]byte(`{"requestSuccessful":true,"responseCode":"success","responseBody":{
				"status":"SUCCESSFUL","amount":50.00,"tx_reference":"LGT-1","ercs_reference":"ERCS|R1",
				"metadata":{"userId":"8b6f1d1e-7d43-4c52-9a35-5d2f7f0b8d11"},"customer":{"email":"a@b.c"}}}`))
		})

		v, err := c.Verify(context.Background(), "ERCS|R1")
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, v.Status)
		assert.Equal(t, int64(5000), v.Amount)
		assert.Equal(t, "ERCS|R1", v.TransactionReference)
		assert.Equal(t, "LGT-1", v.PaymentReference)
		assert.Equal(t, "8b6f1d1e-7d43-4c52-9a35-5d2f7f0b8d11", v.UserID)
		assert.Equal(t, "a@b.c", v.CustomerEmail)
	})

	t.Run("metadata as encoded string", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"requestSuccessful":true,"responseBody":{"status":"FAILED","amount":"12.5","metadata":"{\"user_id\":\"u-7\"}"}}`))
		})

		v, err := c.Verify(context.Background(), "R2")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, v.Status)
		assert.Equal(t, int64(1250), v.Amount)
		assert.Equal(t, "u-7", v.UserID)
		assert.Equal(t, "R2", v.TransactionReference)
	})

	t.Run("gateway error status is unavailable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := c.Verify(context.Background(), "R3")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("unsuccessful envelope is unavailable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"requestSuccessful":false,"responseCode":"not_found","responseMessage":"Transaction not found"}`))
		})

		_, err := c.Verify(context.Background(), "R4")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("slow gateway times out", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()
		c := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})

		_, err := c.Verify(context.Background(), "R5")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("empty reference", func(t *testing.T) {
		c := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
		_, err := c.Verify(context.Background(), " ")
		assert.Error(t, err)
	})
}

func TestClient_Initiate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/payment/initiate", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 50.0, body["amount"])
		assert.Equal(t, "LGT-1", body["paymentReference"])
		assert.Equal(t, "NGN", body["currency"])
		assert.Equal(t, map[string]any{"userId": "u-1"}, body["metadata"])

		w.Write([]byte(`{"requestSuccessful":true,"responseBody":{"paymentReference":"LGT-1","transactionReference":"ERCS|R1","checkoutUrl":"https://pay.example/ERCS|R1"}}`))
	})

	res, err := c.Initiate(context.Background(), InitiateRequest{
		Amount:        5000,
		Reference:     "LGT-1",
		CustomerName:  "ada",
		CustomerEmail: "ada@example.com",
		RedirectURL:   "http://localhost/cb",
		UserID:        "u-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ERCS|R1", res.TransactionReference)
	assert.Equal(t, "https://pay.example/ERCS|R1", res.CheckoutURL)

	_, err = c.Initiate(context.Background(), InitiateRequest{Amount: 0, Reference: "x"})
	assert.Error(t, err)
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, MapStatus("SUCCESSFUL"))
	assert.Equal(t, StatusSuccess, MapStatus("success"))
	assert.Equal(t, StatusPending, MapStatus("PENDING"))
	assert.Equal(t, StatusFailed, MapStatus("CANCELLED"))
	assert.Equal(t, StatusFailed, MapStatus("FAILED"))
}

func TestToKobo(t *testing.T) {
	k, err := ToKobo(decimal.RequireFromString("1234.56"))
	require.NoError(t, err)
	assert.Equal(t, int64(123456), k)

	_, err = ToKobo(decimal.RequireFromString("1.005"))
	assert.Error(t, err)

	_, err = ToKobo(decimal.RequireFromString("-1"))
	assert.Error(t, err)
}
