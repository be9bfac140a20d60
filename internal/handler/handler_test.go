package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mkorchagin/starshop-bot/internal/middleware"
	"github.com/mkorchagin/starshop-bot/internal/model"
)

type stubService struct {
	stats    *model.Stats
	statsErr error

	pending    []model.Order
	pendingErr error

	recent    []model.Order
	recentErr error
}

func (s *stubService) Stats(ctx context.Context) (*model.Stats, error) {
	return s.stats, s.statsErr
}

func (s *stubService) ListPending(ctx context.Context) ([]model.Order, error) {
	return s.pending, s.pendingErr
}

func (s *stubService) RecentOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.recent, s.recentErr
}

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func newTestServer(t *testing.T, svc Service, pinger Pinger) *httptest.Server {
	t.Helper()

	h := NewHandler(svc, pinger, zap.NewNop(), middleware.NewTokenAuth("test-token"))
	srv := httptest.NewServer(h.SetupRouter())
	t.Cleanup(srv.Close)
	return srv
}

func authorizedGet(t *testing.T, url string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-token")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubService{}, &stubPinger{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHealthStorageDown(t *testing.T) {
	srv := newTestServer(t, &stubService{}, &stubPinger{err: errors.New("down")})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestGetStats(t *testing.T) {
	srv := newTestServer(t, &stubService{
		stats: &model.Stats{TotalUsers: 2, ActiveUsers: 1, TotalRevenue: 240, TotalOrders: 3, AvgOrderValue: 120},
	}, &stubPinger{})

	resp := authorizedGet(t, srv.URL+"/api/stats")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var st model.Stats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if st.TotalUsers != 2 || st.AvgOrderValue != 120 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestGetStatsUnauthorized(t *testing.T) {
	srv := newTestServer(t, &stubService{stats: &model.Stats{}}, &stubPinger{})

	resp, err := http.Get(srv.URL + "/api/stats")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestGetPendingOrders(t *testing.T) {
	srv := newTestServer(t, &stubService{
		pending: []model.Order{
			{ID: "ORD1", UserID: 1, StarsAmount: 100, Price: 160, Status: model.OrderStatusPending, CreatedAt: time.Now()},
		},
	}, &stubPinger{})

	resp := authorizedGet(t, srv.URL+"/api/orders/pending")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var orders []model.Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "ORD1" {
		t.Fatalf("orders = %+v", orders)
	}
}

func TestGetPendingOrdersEmpty(t *testing.T) {
	srv := newTestServer(t, &stubService{}, &stubPinger{})

	resp := authorizedGet(t, srv.URL+"/api/orders/pending")
	defer resp.Body.Close()

	var orders []model.Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if orders == nil || len(orders) != 0 {
		t.Fatalf("empty queue must serialize as [], got %v", orders)
	}
}

func TestGetUserOrders(t *testing.T) {
	srv := newTestServer(t, &stubService{
		recent: []model.Order{
			{ID: "ORD2", UserID: 7, StarsAmount: 50, Price: 80, Status: model.OrderStatusCompleted},
			{ID: "ORD1", UserID: 7, StarsAmount: 100, Price: 160, Status: model.OrderStatusPending},
		},
	}, &stubPinger{})

	resp := authorizedGet(t, srv.URL+"/api/users/7/orders")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var orders []model.Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "ORD2" {
		t.Fatalf("orders = %+v", orders)
	}
}

func TestGetUserOrdersBadID(t *testing.T) {
	srv := newTestServer(t, &stubService{}, &stubPinger{})

	resp := authorizedGet(t, srv.URL+"/api/users/abc/orders")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetStatsServiceError(t *testing.T) {
	srv := newTestServer(t, &stubService{statsErr: errors.New("boom")}, &stubPinger{})

	resp := authorizedGet(t, srv.URL+"/api/stats")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}
