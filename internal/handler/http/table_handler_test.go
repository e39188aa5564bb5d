package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	posHandler "github.com/nhtruong/restaurant-pos/internal/handler/http"
	"github.com/nhtruong/restaurant-pos/internal/table"
)

type MockTableService struct {
	mock.Mock
}

func (m *MockTableService) Create(ctx context.Context, number, capacity int) (*table.Table, error) {
	args := m.Called(ctx, number, capacity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*table.Table), args.Error(1)
}

func (m *MockTableService) GetByID(ctx context.Context, id int64) (*table.Table, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*table.Table), args.Error(1)
}

func (m *MockTableService) List(ctx context.Context) ([]table.Table, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]table.Table), args.Error(1)
}

func (m *MockTableService) ListAvailable(ctx context.Context) ([]table.Table, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]table.Table), args.Error(1)
}

func (m *MockTableService) SetStatus(ctx context.Context, id int64, newStatus table.Status) (*table.Table, error) {
	args := m.Called(ctx, id, newStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*table.Table), args.Error(1)
}

func (m *MockTableService) Disable(ctx context.Context, id int64) (*table.Table, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*table.Table), args.Error(1)
}

func (m *MockTableService) Enable(ctx context.Context, id int64) (*table.Table, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*table.Table), args.Error(1)
}

func (m *MockTableService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTableRouter(svc table.Service) *chi.Mux {
	router := chi.NewRouter()
	posHandler.NewTableHandler(svc).RegisterRoutes(router)
	return router
}

func TestTableHandler_Create(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		created := &table.Table{
			ID:       1,
			Number:   7,
			Capacity: 4,
			Status:   table.StatusAvailable,
			IsActive: true,
		}

		mockService := new(MockTableService)
		mockService.On("Create", mock.Anything, 7, 4).Return(created, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/tables", strings.NewReader(`{"number": 7, "capacity": 4}`))
		rr := httptest.NewRecorder()

		newTableRouter(mockService).ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)

		var got table.Table
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))

		if diff := cmp.Diff(*created, got); diff != "" {
			t.Errorf("table mismatch (-want +got):\n%s", diff)
		}

		mockService.AssertExpectations(t)
	})

	t.Run("duplicate number", func(t *testing.T) {
		mockService := new(MockTableService)
		mockService.On("Create", mock.Anything, 7, 4).Return(nil, table.ErrTableNumberExists).Once()

		req := httptest.NewRequest(http.MethodPost, "/tables", strings.NewReader(`{"number": 7, "capacity": 4}`))
		rr := httptest.NewRecorder()

		newTableRouter(mockService).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		mockService := new(MockTableService)

		req := httptest.NewRequest(http.MethodPost, "/tables", strings.NewReader(`{"number": 0, "capacity": 4}`))
		rr := httptest.NewRecorder()

		newTableRouter(mockService).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "Create")
	})
}

func TestTableHandler_SetStatus(t *testing.T) {
	t.Run("invalid transition maps to conflict", func(t *testing.T) {
		mockService := new(MockTableService)
		mockService.On("SetStatus", mock.Anything, int64(1), table.StatusReserved).
			Return(nil, table.ErrInvalidStatusTransition).Once()

		req := httptest.NewRequest(http.MethodPatch, "/tables/1/status", strings.NewReader(`{"status": "reserved"}`))
		rr := httptest.NewRecorder()

		newTableRouter(mockService).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("unknown status rejected before the service", func(t *testing.T) {
		mockService := new(MockTableService)

		req := httptest.NewRequest(http.MethodPatch, "/tables/1/status", strings.NewReader(`{"status": "broken"}`))
		rr := httptest.NewRecorder()

		newTableRouter(mockService).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "SetStatus")
	})
}

func TestTableHandler_Get_NotFound(t *testing.T) {
	mockService := new(MockTableService)
	mockService.On("GetByID", mock.Anything, int64(99)).Return(nil, table.ErrTableNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/tables/99", nil)
	rr := httptest.NewRecorder()

	newTableRouter(mockService).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTableHandler_Disable_WithOpenOrder(t *testing.T) {
	mockService := new(MockTableService)
	mockService.On("Disable", mock.Anything, int64(1)).Return(nil, table.ErrTableHasOpenOrder).Once()

	req := httptest.NewRequest(http.MethodPost, "/tables/1/disable", nil)
	rr := httptest.NewRecorder()

	newTableRouter(mockService).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}
