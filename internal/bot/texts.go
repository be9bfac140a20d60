package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/mkorchagin/starshop-bot/internal/catalog"
	"github.com/mkorchagin/starshop-bot/internal/model"
)

// Кнопки главного меню.
const (
	btnBuy     = "🛒 Купить Stars"
	btnProfile = "👤 Профиль"
	btnSupport = "🆘 Поддержка"

	btnStats  = "📊 Статистика"
	btnOrders = "📦 Заказы"
	btnUsers  = "👥 Пользователи"
)

// Префиксы callback-данных административных кнопок.
const (
	approvePrefix = "approve:"
	rejectPrefix  = "reject:"
)

const (
	textHelp = "🤖 <b>Доступные команды:</b>\n\n" +
		"/start - Запустить бота\n" +
		"/help - Помощь\n" +
		"/cancel - Отменить текущее действие\n\n" +
		"📱 <b>Основные функции:</b>\n" +
		"• 🛒 Купить Stars - Выбор пакета Stars\n" +
		"• 👤 Профиль - Ваша статистика\n" +
		"• 🆘 Поддержка - Связь с поддержкой"

	textPackagesIntro = "🎯 <b>Выберите количество Telegram Stars</b>\n\n" +
		"⚡ <b>Доставка:</b> 1-6 часов\n" +
		"💎 <b>Гарантия доставки</b>\n" +
		"🎁 <b>Бонусные очки</b> за каждую покупку!\n\n" +
		"🔥 <i>Скидки на крупные пакеты!</i>"

	textUnknownPackage  = "❌ Произошла ошибка. Пожалуйста, начните заново"
	textInvalidHandle   = "❌ Некорректный username. Попробуйте еще раз:"
	textNeedScreenshot  = "📸 Пришлите скриншот чека об оплате (фото или файл)."
	textOrderFailed     = "❌ Произошла ошибка при обработке заказа. Попробуйте еще раз."
	textCancelled       = "❌ Текущее действие отменено."
	textNothingToCancel = "❌ Нечего отменять."
	textNothingExpected = "Используйте меню ниже или команду /help."
	textUnknownCommand  = "Неизвестная команда. Используйте /help."
	textTryLater        = "❌ Сервис временно недоступен. Попробуйте позже."
	textQueueEmpty      = "📦 Нет заказов, ожидающих проверки."
	textAccessDenied    = "⛔ Доступ запрещён"
	textOrderNotFound   = "❌ Заказ не найден"
)

func welcomeText(firstName string) string {
	return fmt.Sprintf(
		"🌟 Добро пожаловать, %s!\n\n"+
			"⚡ <b>Telegram Stars Bot</b> - быстрая и надежная покупка Stars\n\n"+
			"✅ <b>Преимущества:</b>\n"+
			"• 🚀 Доставка: 1-6 часов\n"+
			"• 🎁 Бонусная система\n"+
			"• 💎 Гарантия доставки\n"+
			"• 🔒 Безопасные платежи\n\n"+
			"Выберите действие ниже 👇",
		firstName,
	)
}

func packageLabel(pkg catalog.Package) string {
	label := fmt.Sprintf("%d Stars - %d руб.", pkg.Amount, pkg.Price)
	if pkg.Discount > 0 {
		label += fmt.Sprintf(" 🔥 -%d%%", pkg.Discount)
	}
	return label
}

func packageSelectedText(pkg catalog.Package) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎯 <b>Вы выбрали:</b> %d Telegram Stars\n", pkg.Amount)
	fmt.Fprintf(&sb, "💰 <b>Сумма к оплате:</b> %d руб.\n", pkg.Price)
	fmt.Fprintf(&sb, "🎁 <b>Бонусные очки:</b> %d\n", pkg.Points)
	if pkg.Discount > 0 {
		fmt.Fprintf(&sb, "🔥 <b>Скидка:</b> %d%%\n", pkg.Discount)
	}
	sb.WriteString(
		"\n📝 <b>Отправьте ваш Telegram username (без @):</b>\n\n" +
			"⚠ <b>ВНИМАНИЕ:</b>\n" +
			"• Username должен быть публичным\n" +
			"• Убедитесь в правильности написания",
	)
	return sb.String()
}

func paymentInfoText(pkg catalog.Package, handle, paymentDetails string) string {
	return fmt.Sprintf(
		"✅ <b>Заказ создан!</b>\n\n"+
			"• ⭐ Stars: %d\n"+
			"• 💰 Сумма: %d руб.\n"+
			"• 👤 Ваш Telegram: @%s\n"+
			"• 🎁 Очков: %d\n\n"+
			"💳 <b>Реквизиты для оплаты:</b>\n"+
			"<code>%s</code>\n\n"+
			"📸 <b>После оплаты прикрепите скриншот чека</b>\n"+
			"⚡ <b>Доставка:</b> 1-6 часов после проверки",
		pkg.Amount, pkg.Price, handle, pkg.Points, paymentDetails,
	)
}

func proofReceivedText(orderID string) string {
	return fmt.Sprintf(
		"📸 <b>Скриншот получен!</b>\n\n"+
			"🆔 <b>Номер заказа:</b> #%s\n"+
			"⏱ <b>Статус:</b> Ожидает проверки\n"+
			"🚚 <b>Доставка:</b> 1-6 часов\n\n"+
			"Мы уведомим вас о смене статуса заказа.",
		orderID,
	)
}

// loyaltyLevel возвращает уровень покупателя по сумме его покупок.
func loyaltyLevel(totalSpent int64) string {
	switch {
	case totalSpent >= 5000:
		return "💎 Платиновый"
	case totalSpent >= 2000:
		return "🔥 Золотой"
	case totalSpent >= 500:
		return "⚡ Серебряный"
	default:
		return "🎯 Бронзовый"
	}
}

func profileText(u *model.User) string {
	return fmt.Sprintf(
		"👤 <b>Ваш профиль</b>\n\n"+
			"💎 <b>Уровень:</b> %s\n"+
			"⭐ <b>Куплено Stars:</b> %d\n"+
			"💰 <b>Всего потрачено:</b> %d руб.\n"+
			"🎯 <b>Накоплено очков:</b> %d\n"+
			"📦 <b>Заказов:</b> %d\n"+
			"📅 <b>Регистрация:</b> %s\n\n"+
			"💡 Накопите очки и обменивайте их на Stars!",
		loyaltyLevel(u.TotalSpent), u.TotalStars, u.TotalSpent, u.Points, u.OrdersCount,
		u.RegistrationDate.Format("2006-01-02 15:04"),
	)
}

func supportText(supportUsername string) string {
	return fmt.Sprintf(
		"🆘 <b>Поддержка</b>\n\n"+
			"По всем вопросам обращайтесь:\n"+
			"👤 %s\n\n"+
			"📞 <b>Мы поможем:</b>\n"+
			"• С вопросами по заказам\n"+
			"• С проблемами оплаты\n"+
			"• С техническими неполадками",
		supportUsername,
	)
}

func statsText(st *model.Stats) string {
	return fmt.Sprintf(
		"📊 <b>Статистика магазина</b>\n\n"+
			"👥 Пользователей: %d\n"+
			"🟢 Активных за 30 дней: %d\n"+
			"💰 Выручка: %d руб.\n"+
			"📦 Заказов выполнено: %d\n"+
			"📈 Средний чек: %.2f руб.",
		st.TotalUsers, st.ActiveUsers, st.TotalRevenue, st.TotalOrders, st.AvgOrderValue,
	)
}

func userSummaryText(st *model.Stats) string {
	return fmt.Sprintf(
		"👥 <b>Пользователи</b>\n\n"+
			"Всего: %d\n"+
			"Активных за 30 дней: %d",
		st.TotalUsers, st.ActiveUsers,
	)
}

func adminNewRequestText(userID int64, username, firstName, handle string, pkg catalog.Package) string {
	who := firstName
	if username != "" {
		who += " (@" + username + ")"
	}
	return fmt.Sprintf(
		"🆕 <b>Новая заявка</b>\n\n"+
			"👤 Покупатель: %s [%d]\n"+
			"⭐ Пакет: %d Stars за %d руб.\n"+
			"📬 Получатель: @%s\n\n"+
			"Ожидается скриншот оплаты.",
		who, userID, pkg.Amount, pkg.Price, handle,
	)
}

func adminPaymentReceivedText(orderID string, userID int64, username, handle string, pkg catalog.Package) string {
	who := "@" + username
	if username == "" {
		who = fmt.Sprintf("id %d", userID)
	}
	return fmt.Sprintf(
		"💸 <b>Получена оплата</b>\n\n"+
			"🆔 Заказ: #%s\n"+
			"👤 Покупатель: %s [%d]\n"+
			"⭐ Пакет: %d Stars за %d руб.\n"+
			"📬 Получатель: @%s\n\n"+
			"Скриншот чека переслан следующим сообщением.",
		orderID, who, userID, pkg.Amount, pkg.Price, handle,
	)
}

func queueItemText(o model.Order) string {
	who := "@" + o.Username
	if o.Username == "" {
		who = fmt.Sprintf("id %d", o.UserID)
	}
	return fmt.Sprintf(
		"🆔 <b>#%s</b>\n"+
			"👤 %s [%d]\n"+
			"⭐ %d Stars за %d руб.\n"+
			"📬 Получатель: @%s\n"+
			"🕒 Создан: %s",
		o.ID, who, o.UserID, o.StarsAmount, o.Price, o.TelegramUsername,
		o.CreatedAt.Format(time.DateTime),
	)
}
