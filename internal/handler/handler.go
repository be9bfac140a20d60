// Package handler реализует служебный HTTP API магазина для оператора.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mkorchagin/starshop-bot/internal/middleware"
	"github.com/mkorchagin/starshop-bot/internal/model"
)

// Service определяет бизнес-операции, доступные через служебный API.
type Service interface {
	Stats(ctx context.Context) (*model.Stats, error)
	ListPending(ctx context.Context) ([]model.Order, error)
	RecentOrders(ctx context.Context, userID int64) ([]model.Order, error)
}

// Pinger проверяет доступность хранилища записей.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики служебного API.
type Handler struct {
	service Service
	store   Pinger
	logger  *zap.Logger
	auth    *middleware.TokenAuth
}

// NewHandler создаёт новый экземпляр обработчика служебного API.
func NewHandler(s Service, store Pinger, logger *zap.Logger, auth *middleware.TokenAuth) *Handler {
	return &Handler{
		service: s,
		store:   store,
		logger:  logger,
		auth:    auth,
	}
}

// Health сообщает о готовности сервиса и доступности хранилища.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetStats возвращает сводную статистику магазина.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats query error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, st)
}

// GetPendingOrders возвращает очередь заказов, ожидающих проверки,
// начиная с самых старых.
func (h *Handler) GetPendingOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListPending(r.Context())
	if err != nil {
		h.logger.Error("pending orders query error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if orders == nil {
		orders = []model.Order{}
	}

	h.writeJSON(w, orders)
}

// GetUserOrders возвращает последние заказы пользователя по индексу недавних
// заказов.
func (h *Handler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	orders, err := h.service.RecentOrders(r.Context(), userID)
	if err != nil {
		h.logger.Error("user orders query error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if orders == nil {
		orders = []model.Order{}
	}

	h.writeJSON(w, orders)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encoding error", zap.Error(err))
	}
}
