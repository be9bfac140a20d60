// Package bot обрабатывает входящие события Telegram и ведёт диалог покупки.
//
// События разных пользователей обрабатываются параллельно; атомарность
// переходов диалога одного пользователя обеспечивает таблица сессий.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/mkorchagin/starshop-bot/internal/catalog"
	"github.com/mkorchagin/starshop-bot/internal/model"
	"github.com/mkorchagin/starshop-bot/internal/notify"
	"github.com/mkorchagin/starshop-bot/internal/repository"
	"github.com/mkorchagin/starshop-bot/internal/service"
	"github.com/mkorchagin/starshop-bot/internal/session"
	"github.com/mkorchagin/starshop-bot/internal/validation"
)

// Сколько заказов администратор видит за один запрос очереди.
const queuePageSize = 10

// API описывает используемую ботом часть клиента Bot API.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Service определяет бизнес-операции, используемые обработчиками бота.
type Service interface {
	RoleOf(id int64) model.UserRole
	RegisterActivity(ctx context.Context, id int64, username, firstName string) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	CreateOrder(ctx context.Context, intent service.OrderIntent) (string, error)
	ListPending(ctx context.Context) ([]model.Order, error)
	Approve(ctx context.Context, orderID string, actorID int64) (*model.Order, error)
	Reject(ctx context.Context, orderID string, actorID int64) (*model.Order, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// Options задаёт зависимости и параметры бота.
type Options struct {
	API             API
	Service         Service
	Sessions        *session.Table
	Catalog         *catalog.Catalog
	Notifier        notify.Notifier
	Logger          *zap.Logger
	SupportUsername string
	PaymentDetails  string
}

// Bot связывает транспорт Telegram с движком заказов.
type Bot struct {
	api      API
	service  Service
	sessions *session.Table
	catalog  *catalog.Catalog
	notifier notify.Notifier
	logger   *zap.Logger

	supportUsername string
	paymentDetails  string
}

// New создаёт обработчик событий Telegram.
func New(opts Options) *Bot {
	return &Bot{
		api:             opts.API,
		service:         opts.Service,
		sessions:        opts.Sessions,
		catalog:         opts.Catalog,
		notifier:        opts.Notifier,
		logger:          opts.Logger,
		supportUsername: opts.SupportUsername,
		paymentDetails:  opts.PaymentDetails,
	}
}

// Run читает обновления до отмены контекста или закрытия канала.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.HandleUpdate(ctx, upd)
			}()
		}
	}
}

// HandleUpdate обрабатывает одно входящее событие. Ошибка обработки одного
// события не должна прерывать цикл обработки остальных.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while handling update", zap.Any("panic", r))
		}
	}()

	switch {
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID

	if err := b.service.RegisterActivity(ctx, userID, msg.From.UserName, msg.From.FirstName); err != nil {
		// Недоступность хранилища не мешает ответить пользователю.
		b.logger.Warn("register activity failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	switch msg.Text {
	case btnBuy:
		b.sendPackages(msg.Chat.ID)
		return
	case btnProfile:
		b.sendProfile(ctx, msg.Chat.ID, userID)
		return
	case btnSupport:
		b.reply(msg.Chat.ID, supportText(b.supportUsername))
		return
	}

	if b.service.RoleOf(userID) == model.RoleAdmin {
		switch msg.Text {
		case btnStats:
			b.sendStats(ctx, msg.Chat.ID)
			return
		case btnOrders:
			b.sendOrderQueue(ctx, msg.Chat.ID)
			return
		case btnUsers:
			b.sendUserSummary(ctx, msg.Chat.ID)
			return
		}
	}

	b.advanceDialog(ctx, msg)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendWelcome(msg)
	case "help":
		b.reply(msg.Chat.ID, textHelp)
	case "cancel":
		if b.sessions.Cancel(msg.From.ID) {
			b.reply(msg.Chat.ID, textCancelled)
		} else {
			b.reply(msg.Chat.ID, textNothingToCancel)
		}
	default:
		b.reply(msg.Chat.ID, textUnknownCommand)
	}
}

func (b *Bot) sendWelcome(msg *tgbotapi.Message) {
	var keyboard tgbotapi.ReplyKeyboardMarkup
	if b.service.RoleOf(msg.From.ID) == model.RoleAdmin {
		keyboard = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(btnStats),
				tgbotapi.NewKeyboardButton(btnOrders),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(btnUsers),
			),
		)
	} else {
		keyboard = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(btnBuy),
				tgbotapi.NewKeyboardButton(btnProfile),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(btnSupport),
			),
		)
	}

	b.replyWithMarkup(msg.Chat.ID, welcomeText(msg.From.FirstName), keyboard)
}

func (b *Bot) sendPackages(chatID int64) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, b.catalog.Len())
	for _, key := range b.catalog.Keys() {
		pkg, _ := b.catalog.Get(key)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(packageLabel(pkg), key),
		))
	}

	b.replyWithMarkup(chatID, textPackagesIntro, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) sendProfile(ctx context.Context, chatID, userID int64) {
	u, err := b.service.GetUser(ctx, userID)
	if err != nil {
		b.logger.Error("profile lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, textTryLater)
		return
	}
	b.reply(chatID, profileText(u))
}

// advanceDialog продвигает диалог покупки по текущему состоянию сессии.
func (b *Bot) advanceDialog(ctx context.Context, msg *tgbotapi.Message) {
	sess, ok := b.sessions.Get(msg.From.ID)
	if !ok {
		b.reply(msg.Chat.ID, textNothingExpected)
		return
	}

	switch sess.State {
	case session.StateAwaitingHandle:
		b.acceptHandle(msg, sess)
	case session.StateAwaitingProof:
		b.acceptProof(ctx, msg)
	}
}

// acceptHandle проверяет присланный хендл получателя. Неудачная проверка
// оставляет сессию без изменений: число повторных попыток не ограничено.
func (b *Bot) acceptHandle(msg *tgbotapi.Message, sess session.Session) {
	if hasMedia(msg) || !validation.ValidateUserInput(strings.TrimSpace(msg.Text)) {
		b.reply(msg.Chat.ID, textInvalidHandle)
		return
	}

	handle := validation.NormalizeHandle(msg.Text)
	if handle == "" {
		b.reply(msg.Chat.ID, textInvalidHandle)
		return
	}

	if !b.sessions.SetHandle(msg.From.ID, handle) {
		// Сессия истекла или была отменена параллельным событием.
		b.reply(msg.Chat.ID, textNothingExpected)
		return
	}

	b.reply(msg.Chat.ID, paymentInfoText(sess.Package, handle, b.paymentDetails))

	alert := adminNewRequestText(msg.From.ID, msg.From.UserName, msg.From.FirstName, handle, sess.Package)
	if err := b.notifier.SendToAdmin(alert); err != nil {
		b.logger.Warn("admin alert delivery failed", zap.Error(err))
	}
}

// acceptProof принимает подтверждение оплаты и создаёт заказ.
// Сессия снимается до создания заказа: из нескольких одновременных
// медиа-сообщений одного пользователя заказ создаёт ровно одно, и сессия
// не восстанавливается даже при ошибке создания.
func (b *Bot) acceptProof(ctx context.Context, msg *tgbotapi.Message) {
	if !hasMedia(msg) {
		b.reply(msg.Chat.ID, textNeedScreenshot)
		return
	}

	sess, ok := b.sessions.TakeForProof(msg.From.ID)
	if !ok {
		// Сессию уже забрало параллельное событие этого же пользователя.
		b.reply(msg.Chat.ID, textNothingExpected)
		return
	}

	intent := service.OrderIntent{
		UserID:           msg.From.ID,
		Username:         msg.From.UserName,
		FirstName:        msg.From.FirstName,
		TelegramUsername: sess.Handle,
		StarsAmount:      sess.Package.Amount,
		Price:            sess.Package.Price,
		Points:           sess.Package.Points,
	}

	orderID, err := b.service.CreateOrder(ctx, intent)
	if err != nil {
		b.logger.Error("order creation failed", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		b.reply(msg.Chat.ID, textOrderFailed)
		return
	}

	b.reply(msg.Chat.ID, proofReceivedText(orderID))

	alert := adminPaymentReceivedText(orderID, msg.From.ID, msg.From.UserName, sess.Handle, sess.Package)
	if err := b.notifier.SendToAdmin(alert); err != nil {
		b.logger.Warn("admin alert delivery failed", zap.String("order_id", orderID), zap.Error(err))
	}
	if err := b.notifier.ForwardToAdmin(msg.Chat.ID, msg.MessageID); err != nil {
		b.logger.Warn("proof forward failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		return
	}

	if err := b.service.RegisterActivity(ctx, cb.From.ID, cb.From.UserName, cb.From.FirstName); err != nil {
		b.logger.Warn("register activity failed", zap.Int64("user_id", cb.From.ID), zap.Error(err))
	}

	switch {
	case strings.HasPrefix(cb.Data, approvePrefix):
		b.handleDecision(ctx, cb, strings.TrimPrefix(cb.Data, approvePrefix), true)
	case strings.HasPrefix(cb.Data, rejectPrefix):
		b.handleDecision(ctx, cb, strings.TrimPrefix(cb.Data, rejectPrefix), false)
	default:
		b.handlePackageSelection(cb)
	}
}

func (b *Bot) handlePackageSelection(cb *tgbotapi.CallbackQuery) {
	defer b.answerCallback(cb.ID, "")

	if cb.Message == nil {
		return
	}

	pkg, ok := b.catalog.Get(cb.Data)
	if !ok {
		b.editMessage(cb.Message.Chat.ID, cb.Message.MessageID, textUnknownPackage)
		return
	}

	// Пакет снимается в сессию целиком: дальнейшие правки каталога
	// не меняют условия уже начатого заказа.
	b.sessions.Start(cb.From.ID, cb.Data, pkg)

	b.editMessage(cb.Message.Chat.ID, cb.Message.MessageID, packageSelectedText(pkg))
}

func (b *Bot) handleDecision(ctx context.Context, cb *tgbotapi.CallbackQuery, orderID string, approve bool) {
	var (
		o   *model.Order
		err error
	)
	if approve {
		o, err = b.service.Approve(ctx, orderID, cb.From.ID)
	} else {
		o, err = b.service.Reject(ctx, orderID, cb.From.ID)
	}

	switch {
	case errors.Is(err, service.ErrForbidden):
		b.answerCallback(cb.ID, textAccessDenied)
		return
	case errors.Is(err, repository.ErrOrderNotFound):
		b.answerCallback(cb.ID, textOrderNotFound)
		return
	case err != nil:
		b.logger.Error("order decision failed",
			zap.String("order_id", orderID), zap.Bool("approve", approve), zap.Error(err))
		b.answerCallback(cb.ID, textTryLater)
		return
	}

	result := fmt.Sprintf("✅ Заказ #%s подтверждён", o.ID)
	if !approve {
		result = fmt.Sprintf("❌ Заказ #%s отклонён", o.ID)
	}

	b.answerCallback(cb.ID, result)
	if cb.Message != nil {
		b.editMessage(cb.Message.Chat.ID, cb.Message.MessageID, result)
	}
}

func (b *Bot) sendStats(ctx context.Context, chatID int64) {
	st, err := b.service.Stats(ctx)
	if err != nil {
		b.logger.Error("stats query failed", zap.Error(err))
		b.reply(chatID, textTryLater)
		return
	}
	b.reply(chatID, statsText(st))
}

func (b *Bot) sendUserSummary(ctx context.Context, chatID int64) {
	st, err := b.service.Stats(ctx)
	if err != nil {
		b.logger.Error("stats query failed", zap.Error(err))
		b.reply(chatID, textTryLater)
		return
	}
	b.reply(chatID, userSummaryText(st))
}

// sendOrderQueue показывает администратору заказы, ожидающие проверки,
// начиная с самых старых, с кнопками подтверждения и отклонения.
func (b *Bot) sendOrderQueue(ctx context.Context, chatID int64) {
	orders, err := b.service.ListPending(ctx)
	if err != nil {
		b.logger.Error("pending orders query failed", zap.Error(err))
		b.reply(chatID, textTryLater)
		return
	}
	if len(orders) == 0 {
		b.reply(chatID, textQueueEmpty)
		return
	}

	if len(orders) > queuePageSize {
		orders = orders[:queuePageSize]
	}

	for _, o := range orders {
		markup := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить", approvePrefix+o.ID),
				tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", rejectPrefix+o.ID),
			),
		)
		b.replyWithMarkup(chatID, queueItemText(o), markup)
	}
}

func hasMedia(msg *tgbotapi.Message) bool {
	return len(msg.Photo) > 0 || msg.Document != nil
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("reply delivery failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) replyWithMarkup(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("reply delivery failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) editMessage(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML

	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("message edit failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Warn("callback answer failed", zap.Error(err))
	}
}
