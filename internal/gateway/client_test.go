package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapStatus(t *testing.T) {
	assert.Equal(t, OutcomeApproved, MapStatus("approved"))
	assert.Equal(t, OutcomePending, MapStatus("pending"))
	assert.Equal(t, OutcomePending, MapStatus("in_process"))
	assert.Equal(t, OutcomePending, MapStatus("authorized"))
	assert.Equal(t, OutcomeRejected, MapStatus("rejected"))
	assert.Equal(t, OutcomeRejected, MapStatus("cancelled"))

	// Unknown statuses stay pending so a later re-check decides.
	assert.Equal(t, OutcomePending, MapStatus("something_new"))
}

func TestCreateCharge_SendsIdempotencyKey(t *testing.T) {
	var gotKey, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":99001,"status":"approved","status_detail":"accredited","external_reference":"settle-booking-b1-0"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-123")
	result, err := client.CreateCharge(context.Background(), &ChargeRequest{
		Amount:            1000,
		Currency:          "USD",
		ExternalReference: "settle-booking-b1-0",
		IdempotencyKey:    "settle-booking-b1-0",
		Token:             "tok_abc",
	})

	assert.NoError(t, err)
	assert.Equal(t, "settle-booking-b1-0", gotKey)
	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, "99001", result.GatewayPaymentID)
	assert.Equal(t, OutcomeApproved, result.Status)
	assert.Equal(t, "accredited", result.StatusDetail)
}

func TestCreateCharge_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-123")
	_, err := client.CreateCharge(context.Background(), &ChargeRequest{Amount: 1000})

	assert.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestCreateCharge_DeclineIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"cc_rejected_insufficient_amount","error":"bad_request"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-123")
	_, err := client.CreateCharge(context.Background(), &ChargeRequest{Amount: 1000})

	assert.Error(t, err)
	assert.False(t, IsRetryable(err))
	gwErr, ok := err.(*GatewayError)
	assert.True(t, ok)
	assert.Equal(t, "cc_rejected_insufficient_amount", gwErr.Message)
}

func TestCreateCharge_NetworkErrorIsRetryable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "token-123")
	_, err := client.CreateCharge(context.Background(), &ChargeRequest{Amount: 1000})

	assert.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestGetMerchantOrder_CollectsPaymentIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/merchant_orders/555", r.URL.Path)
		w.Write([]byte(`{"id":555,"external_reference":"settle-marketplace_order-o1-0","payments":[{"id":1},{"id":2}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-123")
	order, err := client.GetMerchantOrder(context.Background(), "555")

	assert.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, order.PaymentIDs)
}

func TestFindPaymentByReference_NoMatchReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-123")
	resource, err := client.FindPaymentByReference(context.Background(), "settle-booking-missing-0")

	assert.NoError(t, err)
	assert.Nil(t, resource)
}
