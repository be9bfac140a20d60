// Package model содержит доменные сущности магазина Telegram Stars.
package model

import "time"

// UserRole определяет роль участника системы.
type UserRole string

const (
	// RoleUser — обычный покупатель.
	RoleUser UserRole = "user"
	// RoleAdmin — администратор, проверяющий оплату заказов.
	RoleAdmin UserRole = "admin"
)

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "pending"
	OrderStatusPaid         OrderStatus = "paid"
	OrderStatusCompleted    OrderStatus = "completed"
	OrderStatusCancelled    OrderStatus = "cancelled"
	OrderStatusPaymentError OrderStatus = "payment_error"
)

// AwaitingReview сообщает, ожидает ли заказ ручной проверки администратором.
func (s OrderStatus) AwaitingReview() bool {
	return s == OrderStatusPending || s == OrderStatusPaid
}

// User представляет покупателя и его накопленную статистику.
// Счётчики total_stars, total_spent, points и orders_count изменяются
// только при подтверждении заказа и никогда не уменьшаются.
type User struct {
	ID               int64     `json:"-"`
	Username         string    `json:"username"`
	FirstName        string    `json:"first_name,omitempty"`
	TotalStars       int64     `json:"total_stars"`
	TotalSpent       int64     `json:"total_spent"`
	Points           int64     `json:"points"`
	OrdersCount      int64     `json:"orders_count"`
	Role             UserRole  `json:"role"`
	RegistrationDate time.Time `json:"registration_date"`
	LastActivity     time.Time `json:"last_activity"`
	Notifications    bool      `json:"notifications"`
}

// Order описывает одну попытку покупки пакета Stars.
type Order struct {
	ID               string      `json:"order_id"`
	UserID           int64       `json:"user_id"`
	Username         string      `json:"username"`
	FirstName        string      `json:"first_name,omitempty"`
	TelegramUsername string      `json:"telegram_username"`
	StarsAmount      int64       `json:"stars_amount"`
	Price            int64       `json:"price"`
	Points           int64       `json:"points"`
	Status           OrderStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
}

// Stats содержит сводную статистику магазина по всем пользователям.
type Stats struct {
	TotalUsers    int     `json:"total_users"`
	ActiveUsers   int     `json:"active_users"`
	TotalRevenue  int64   `json:"total_revenue"`
	TotalOrders   int64   `json:"total_orders"`
	AvgOrderValue float64 `json:"avg_order_value"`
}
