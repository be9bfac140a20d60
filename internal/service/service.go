// Package service реализует бизнес-логику магазина: журнал заказов,
// определение ролей и сводную аналитику.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mkorchagin/starshop-bot/internal/catalog"
	"github.com/mkorchagin/starshop-bot/internal/model"
	"github.com/mkorchagin/starshop-bot/internal/repository"
)

// ErrForbidden возвращается при попытке выполнить административное действие
// без прав администратора.
var ErrForbidden = errors.New("operation requires administrator role")

// activeWindow — окно, в котором пользователь считается активным для аналитики.
const activeWindow = 30 * 24 * time.Hour

// Repository описывает контракт доступа к записям, используемый сервисом.
type Repository interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	SaveUser(ctx context.Context, u *model.User) error
	CreateOrder(ctx context.Context, o *model.Order) (string, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	UpdateOrder(ctx context.Context, o *model.Order) error
	CreditAndComplete(ctx context.Context, u *model.User, o *model.Order) error
	RecentOrderIDs(ctx context.Context, userID int64) ([]string, error)
	ListPendingOrders(ctx context.Context) ([]model.Order, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Notifier описывает канал доставки уведомлений пользователям.
// Сбой доставки не откатывает уже применённые изменения.
type Notifier interface {
	SendToUser(userID int64, text string) error
}

// OrderIntent описывает данные для создания заказа из завершённого диалога.
type OrderIntent struct {
	UserID           int64
	Username         string
	FirstName        string
	TelegramUsername string
	StarsAmount      int64
	Price            int64
	Points           int64
}

// Service содержит бизнес-логику обработки заказов.
type Service struct {
	repo            Repository
	catalog         *catalog.Catalog
	notifier        Notifier
	logger          *zap.Logger
	adminID         int64
	supportUsername string

	// Подтверждение и отклонение одного и того же заказа сериализуются,
	// чтобы двойное нажатие кнопки не зачислило бонусы дважды.
	mu         sync.Mutex
	orderLocks map[string]*orderLock
}

// orderLock считает владельцев, чтобы запись удалялась из таблицы после
// освобождения последним из них.
type orderLock struct {
	mu   sync.Mutex
	refs int
}

// NewService создаёт сервис магазина.
func NewService(repo Repository, cat *catalog.Catalog, notifier Notifier, logger *zap.Logger, adminID int64, supportUsername string) *Service {
	return &Service{
		repo:            repo,
		catalog:         cat,
		notifier:        notifier,
		logger:          logger,
		adminID:         adminID,
		supportUsername: supportUsername,
		orderLocks:      make(map[string]*orderLock),
	}
}

// RoleOf возвращает роль участника по его идентификатору.
// Администратор ровно один и задаётся конфигурацией.
func (s *Service) RoleOf(id int64) model.UserRole {
	if id == s.adminID {
		return model.RoleAdmin
	}
	return model.RoleUser
}

// RegisterActivity обновляет профиль пользователя при входящем событии.
func (s *Service) RegisterActivity(ctx context.Context, id int64, username, firstName string) error {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}

	if username != "" {
		u.Username = username
	}
	if firstName != "" {
		u.FirstName = firstName
	}
	u.Role = s.RoleOf(id)

	return s.repo.SaveUser(ctx, u)
}

// GetUser возвращает запись пользователя.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateOrder создаёт заказ, ожидающий проверки оплаты. Ошибка хранилища —
// жёсткий отказ: вызывающая сторона не должна подтверждать успех пользователю.
func (s *Service) CreateOrder(ctx context.Context, intent OrderIntent) (string, error) {
	o := &model.Order{
		UserID:           intent.UserID,
		Username:         intent.Username,
		FirstName:        intent.FirstName,
		TelegramUsername: intent.TelegramUsername,
		StarsAmount:      intent.StarsAmount,
		Price:            intent.Price,
		Points:           intent.Points,
	}

	id, err := s.repo.CreateOrder(ctx, o)
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}

	return id, nil
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListPending возвращает заказы, ожидающие проверки, начиная с самых старых.
func (s *Service) ListPending(ctx context.Context) ([]model.Order, error) {
	return s.repo.ListPendingOrders(ctx)
}

// RecentOrders возвращает последние заказы пользователя. Список недавних
// заказов — индекс, а не источник истины: идентификаторы уже истёкших
// заказов пропускаются.
func (s *Service) RecentOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	ids, err := s.repo.RecentOrderIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recent order ids: %w", err)
	}

	orders := make([]model.Order, 0, len(ids))
	for _, id := range ids {
		o, err := s.repo.GetOrder(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				continue
			}
			return nil, fmt.Errorf("get order %s: %w", id, err)
		}
		orders = append(orders, *o)
	}

	return orders, nil
}

// lockOrder берёт блокировку по идентификатору заказа.
func (s *Service) lockOrder(id string) func() {
	s.mu.Lock()
	l, ok := s.orderLocks[id]
	if !ok {
		l = &orderLock{}
		s.orderLocks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.orderLocks, id)
		}
		s.mu.Unlock()
	}
}

// Approve подтверждает оплату заказа и зачисляет бонусы владельцу.
// Повторное подтверждение уже завершённого заказа — безопасная пустая операция:
// бонусы зачисляются не более одного раза.
func (s *Service) Approve(ctx context.Context, orderID string, actorID int64) (*model.Order, error) {
	if s.RoleOf(actorID) != model.RoleAdmin {
		return nil, ErrForbidden
	}

	unlock := s.lockOrder(orderID)
	defer unlock()

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status == model.OrderStatusCompleted {
		return o, nil
	}

	// Очки определяются по сохранённой в заказе паре (количество, цена).
	// Пакет, исчезнувший из каталога, очков не приносит.
	var points int64
	if pkg, ok := s.catalog.ByAmountPrice(o.StarsAmount, o.Price); ok {
		points = pkg.Points
	}

	u, err := s.repo.GetUser(ctx, o.UserID)
	if err != nil {
		return nil, err
	}

	u.TotalStars += o.StarsAmount
	u.TotalSpent += o.Price
	u.Points += points
	u.OrdersCount++

	now := time.Now()
	o.Status = model.OrderStatusCompleted
	o.CompletedAt = &now

	// Зачисление и завершение заказа применяются одной атомарной записью:
	// сбой хранилища оставляет заказ незавершённым и незачисленным, и
	// повторное подтверждение зачислит бонусы ровно один раз.
	if err := s.repo.CreditAndComplete(ctx, u, o); err != nil {
		return nil, fmt.Errorf("approve order %s: %w", o.ID, err)
	}

	s.notifyUser(u, fmt.Sprintf(
		"✅ <b>Заказ #%s выполнен!</b>\n\n⭐ Stars: %d\n🎁 Начислено очков: %d\n\nСпасибо за покупку!",
		o.ID, o.StarsAmount, points,
	))

	return o, nil
}

// Reject помечает заказ как неоплаченный. Бонусы владельца не изменяются,
// даже если заказ ранее был подтверждён.
func (s *Service) Reject(ctx context.Context, orderID string, actorID int64) (*model.Order, error) {
	if s.RoleOf(actorID) != model.RoleAdmin {
		return nil, ErrForbidden
	}

	unlock := s.lockOrder(orderID)
	defer unlock()

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status != model.OrderStatusPaymentError {
		o.Status = model.OrderStatusPaymentError
		if err := s.repo.UpdateOrder(ctx, o); err != nil {
			return nil, fmt.Errorf("reject order %s: %w", o.ID, err)
		}
	}

	s.notifyUserByID(ctx, o.UserID, fmt.Sprintf(
		"❌ <b>Оплата заказа #%s не подтверждена.</b>\n\nЕсли вы уверены, что оплатили заказ, обратитесь в поддержку: %s",
		o.ID, s.supportUsername,
	))

	return o, nil
}

// Stats собирает сводную статистику по всем пользователям.
// Снимок не блокирует параллельные подтверждения заказов и может
// незначительно отставать.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	st := &model.Stats{TotalUsers: len(users)}
	cutoff := time.Now().Add(-activeWindow)

	for _, u := range users {
		if u.LastActivity.After(cutoff) {
			st.ActiveUsers++
		}
		st.TotalRevenue += u.TotalSpent
		st.TotalOrders += u.OrdersCount
	}

	if st.TotalUsers > 0 {
		st.AvgOrderValue = float64(st.TotalRevenue) / float64(st.TotalUsers)
	}

	return st, nil
}

// notifyUser отправляет уведомление, если пользователь их не отключил.
func (s *Service) notifyUser(u *model.User, text string) {
	if !u.Notifications {
		return
	}
	if err := s.notifier.SendToUser(u.ID, text); err != nil {
		s.logger.Warn("user notification failed", zap.Int64("user_id", u.ID), zap.Error(err))
	}
}

func (s *Service) notifyUserByID(ctx context.Context, userID int64, text string) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn("notification skipped: user record unavailable",
			zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	s.notifyUser(u, text)
}
