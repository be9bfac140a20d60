// Package repository реализует слой доступа к записям магазина в Redis.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mkorchagin/starshop-bot/internal/model"
	"github.com/mkorchagin/starshop-bot/internal/validation"
)

// ErrOrderNotFound возвращается, если заказ с указанным идентификатором не найден.
var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrStorageUnavailable возвращается, когда хранилище недоступно и повторы исчерпаны.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

const (
	// Запись пользователя живёт 30 дней с момента последней записи.
	userTTL = 30 * 24 * time.Hour
	// Запись заказа живёт 7 дней; срок продлевается при обновлении.
	orderTTL = 7 * 24 * time.Hour
	// Список последних заказов пользователя ограничен по длине.
	recentOrdersLimit = 20

	scanBatchSize = 100

	userKeyPrefix  = "user:"
	orderKeyPrefix = "order:"
)

func userKey(id int64) string {
	return userKeyPrefix + strconv.FormatInt(id, 10)
}

func orderKey(id string) string {
	return orderKeyPrefix + id
}

func userOrdersKey(id int64) string {
	return "user_orders:" + strconv.FormatInt(id, 10)
}

// Store предоставляет доступ к записям пользователей и заказов в Redis.
type Store struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStore подключается к Redis по указанному URL и проверяет соединение.
func NewStore(redisURL string, logger *zap.Logger) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{client: client, logger: logger}, nil
}

// Close закрывает соединение с Redis.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping проверяет доступность хранилища.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping: %w", ErrStorageUnavailable)
	}
	return nil
}

// withRetry повторяет операцию с нарастающей задержкой при временных сбоях.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op()
		if err == nil || errors.Is(err, redis.Nil) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// wrapStorage приводит ошибку хранилища к ErrStorageUnavailable,
// сохраняя название операции и исходную причину.
func wrapStorage(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}

// defaultUser возвращает запись нового пользователя со значениями по умолчанию.
func defaultUser(id int64) *model.User {
	now := time.Now()
	return &model.User{
		ID:               id,
		Role:             model.RoleUser,
		RegistrationDate: now,
		LastActivity:     now,
		Notifications:    true,
	}
}

// decodeUser разбирает сохранённую запись пользователя. Неизвестные поля
// игнорируются, отсутствующие получают значения по умолчанию.
func decodeUser(id int64, data []byte) (*model.User, error) {
	u := defaultUser(id)
	if err := json.Unmarshal(data, u); err != nil {
		return nil, fmt.Errorf("decode user %d: %w", id, err)
	}
	u.ID = id
	return u, nil
}

// GetUser возвращает запись пользователя. Если записи ещё нет,
// возвращается новая запись со значениями по умолчанию.
func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var data string
	err := s.withRetry(ctx, func() error {
		var getErr error
		data, getErr = s.client.Get(ctx, userKey(id)).Result()
		return getErr
	})
	if errors.Is(err, redis.Nil) {
		return defaultUser(id), nil
	}
	if err != nil {
		return nil, wrapStorage("get user", err)
	}

	return decodeUser(id, []byte(data))
}

// SaveUser сохраняет запись пользователя, обновляя отметку последней
// активности. Срок хранения записи продлевается на 30 дней.
func (s *Store) SaveUser(ctx context.Context, u *model.User) error {
	if now := time.Now(); now.After(u.LastActivity) {
		u.LastActivity = now
	}

	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user %d: %w", u.ID, err)
	}

	err = s.withRetry(ctx, func() error {
		return s.client.Set(ctx, userKey(u.ID), data, userTTL).Err()
	})
	if err != nil {
		return wrapStorage("save user", err)
	}

	return nil
}

// CreateOrder присваивает заказу идентификатор, отметку времени и начальный
// статус, после чего сохраняет запись и дополняет список последних заказов
// пользователя. Список ведётся по возможности: источником истины остаётся
// сама запись заказа.
func (s *Store) CreateOrder(ctx context.Context, o *model.Order) (string, error) {
	o.ID = validation.NewOrderID()
	o.CreatedAt = time.Now()
	o.Status = model.OrderStatusPending

	data, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("encode order: %w", err)
	}

	err = s.withRetry(ctx, func() error {
		return s.client.Set(ctx, orderKey(o.ID), data, orderTTL).Err()
	})
	if err != nil {
		return "", wrapStorage("create order", err)
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, userOrdersKey(o.UserID), o.ID)
	pipe.LTrim(ctx, userOrdersKey(o.UserID), 0, recentOrdersLimit-1)
	pipe.Expire(ctx, userOrdersKey(o.UserID), userTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("recent orders list update failed",
			zap.Int64("user_id", o.UserID), zap.String("order_id", o.ID), zap.Error(err))
	}

	return o.ID, nil
}

// CreditAndComplete сохраняет зачисление бонусов и завершение заказа одной
// атомарной записью: либо применяются обе записи, либо ни одной. Частичное
// состояние "пользователь зачислен, заказ не завершён" допускало бы повторное
// зачисление при повторном подтверждении.
func (s *Store) CreditAndComplete(ctx context.Context, u *model.User, o *model.Order) error {
	if now := time.Now(); now.After(u.LastActivity) {
		u.LastActivity = now
	}

	userData, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user %d: %w", u.ID, err)
	}
	orderData, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.ID, err)
	}

	err = s.withRetry(ctx, func() error {
		_, txErr := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey(u.ID), userData, userTTL)
			pipe.Set(ctx, orderKey(o.ID), orderData, orderTTL)
			return nil
		})
		return txErr
	})
	if err != nil {
		return wrapStorage("credit and complete", err)
	}

	return nil
}

// GetOrder возвращает заказ по идентификатору.
func (s *Store) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var data string
	err := s.withRetry(ctx, func() error {
		var getErr error
		data, getErr = s.client.Get(ctx, orderKey(id)).Result()
		return getErr
	})
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, wrapStorage("get order", err)
	}

	var o model.Order
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", id, err)
	}

	return &o, nil
}

// UpdateOrder перезаписывает заказ, продлевая срок его хранения.
func (s *Store) UpdateOrder(ctx context.Context, o *model.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.ID, err)
	}

	err = s.withRetry(ctx, func() error {
		return s.client.Set(ctx, orderKey(o.ID), data, orderTTL).Err()
	})
	if err != nil {
		return wrapStorage("update order", err)
	}

	return nil
}

// RecentOrderIDs возвращает идентификаторы последних заказов пользователя.
// Список является вспомогательным индексом и может отставать от записей заказов.
func (s *Store) RecentOrderIDs(ctx context.Context, userID int64) ([]string, error) {
	var ids []string
	err := s.withRetry(ctx, func() error {
		var lErr error
		ids, lErr = s.client.LRange(ctx, userOrdersKey(userID), 0, -1).Result()
		return lErr
	})
	if err != nil {
		return nil, wrapStorage("recent orders", err)
	}
	return ids, nil
}

// ListPendingOrders возвращает заказы, ожидающие проверки, в порядке
// возрастания времени создания. Запрос сканирует записи заказов,
// не полагаясь на вспомогательные списки.
func (s *Store) ListPendingOrders(ctx context.Context) ([]model.Order, error) {
	values, _, err := s.scanValues(ctx, orderKeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	var orders []model.Order
	for _, v := range values {
		var o model.Order
		if err := json.Unmarshal([]byte(v), &o); err != nil {
			s.logger.Warn("skipping undecodable order record", zap.Error(err))
			continue
		}
		if o.Status.AwaitingReview() {
			orders = append(orders, o)
		}
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})

	return orders, nil
}

// ListUsers возвращает записи всех пользователей.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	values, keys, err := s.scanValues(ctx, userKeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	users := make([]model.User, 0, len(values))
	for i, v := range values {
		id, err := strconv.ParseInt(strings.TrimPrefix(keys[i], userKeyPrefix), 10, 64)
		if err != nil {
			s.logger.Warn("skipping user record with malformed key", zap.String("key", keys[i]))
			continue
		}
		u, err := decodeUser(id, []byte(v))
		if err != nil {
			s.logger.Warn("skipping undecodable user record", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		users = append(users, *u)
	}

	return users, nil
}

// scanValues собирает значения всех ключей по шаблону вместе с самими ключами.
// Порядок значений соответствует порядку ключей.
func (s *Store) scanValues(ctx context.Context, pattern string) ([]string, []string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, nil, wrapStorage("scan "+pattern, err)
	}
	if len(keys) == 0 {
		return nil, nil, nil
	}

	raw, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, wrapStorage("mget "+pattern, err)
	}

	values := make([]string, 0, len(raw))
	matched := make([]string, 0, len(raw))
	for i, v := range raw {
		str, ok := v.(string)
		if !ok {
			// Ключ мог истечь между SCAN и MGET.
			continue
		}
		values = append(values, str)
		matched = append(matched, keys[i])
	}

	return values, matched, nil
}
