package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	posHandler "github.com/nhtruong/restaurant-pos/internal/handler/http"
	"github.com/nhtruong/restaurant-pos/internal/order"
	"github.com/nhtruong/restaurant-pos/internal/payment"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreateIntent(ctx context.Context, orderID int64) (*payment.Intent, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *MockPaymentService) HandleWebhook(ctx context.Context, raw []byte) error {
	args := m.Called(ctx, raw)
	return args.Error(0)
}

func (m *MockPaymentService) CheckStatus(ctx context.Context, orderID int64) (*payment.PaidStatus, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.PaidStatus), args.Error(1)
}

func (m *MockPaymentService) GetInvoice(ctx context.Context, orderID int64) (*payment.Invoice, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Invoice), args.Error(1)
}

func newPaymentRouter(svc payment.Service) *chi.Mux {
	router := chi.NewRouter()
	posHandler.NewPaymentHandler(svc).RegisterRoutes(router)
	return router
}

func TestPaymentHandler_CreateIntent_Success(t *testing.T) {
	mockService := new(MockPaymentService)

	expiredAt := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)
	intent := &payment.Intent{
		QRURL:         "https://img.vietqr.io/image/VCB-0123456789-compact2.png?amount=250000",
		Amount:        decimal.NewFromInt(250000),
		TableNumber:   7,
		OrderID:       42,
		TransactionID: "SEVQR OD42",
		ExpiresIn:     900,
		ExpiredAt:     expiredAt,
	}
	mockService.On("CreateIntent", mock.Anything, int64(42)).Return(intent, nil).Once()

	body, err := json.Marshal(posHandler.CreatePaymentIntentRequest{OrderID: 42})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/payments/intent", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	newPaymentRouter(mockService).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var got payment.Intent
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))

	if diff := cmp.Diff(*intent, got); diff != "" {
		t.Errorf("intent mismatch (-want +got):\n%s", diff)
	}

	mockService.AssertExpectations(t)
}

func TestPaymentHandler_CreateIntent_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{
			name:       "order already paid",
			body:       `{"order_id": 42}`,
			serviceErr: payment.ErrOrderAlreadyPaid,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "order missing",
			body:       `{"order_id": 42}`,
			serviceErr: order.ErrOrderNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid payload",
			body:       `{"order_id": "nope"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing order id",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockPaymentService)
			if tt.serviceErr != nil {
				mockService.On("CreateIntent", mock.Anything, int64(42)).Return(nil, tt.serviceErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/payments/intent", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			newPaymentRouter(mockService).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestPaymentHandler_Webhook(t *testing.T) {
	t.Run("acknowledges processed notification", func(t *testing.T) {
		body := []byte(`{"transferAmount": 250000, "content": "SEVQR OD42"}`)

		mockService := new(MockPaymentService)
		mockService.On("HandleWebhook", mock.Anything, body).Return(nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		newPaymentRouter(mockService).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success": true}`, rr.Body.String())
		mockService.AssertExpectations(t)
	})

	t.Run("internal failure is a 500", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("HandleWebhook", mock.Anything, mock.Anything).Return(assert.AnError).Once()

		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()

		newPaymentRouter(mockService).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestPaymentHandler_CheckStatus(t *testing.T) {
	mockService := new(MockPaymentService)
	mockService.On("CheckStatus", mock.Anything, int64(42)).Return(&payment.PaidStatus{Paid: true}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/orders/42/payment-status", nil)
	rr := httptest.NewRecorder()

	newPaymentRouter(mockService).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"paid": true}`, rr.Body.String())
	mockService.AssertExpectations(t)
}

func TestPaymentHandler_GetInvoice_NotFound(t *testing.T) {
	mockService := new(MockPaymentService)
	mockService.On("GetInvoice", mock.Anything, int64(42)).Return(nil, payment.ErrInvoiceNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/orders/42/invoice", nil)
	rr := httptest.NewRecorder()

	newPaymentRouter(mockService).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	mockService.AssertExpectations(t)
}
