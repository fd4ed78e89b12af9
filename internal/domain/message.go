package domain

// Notification is the localized user-facing payload of a push.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// DefaultLocale is used when a subscriber's locale has no catalog entry.
const DefaultLocale = "ru"

// notificationCatalog holds the alert texts per supported locale.
var notificationCatalog = map[string]Notification{
	"ru": {
		Title: "Северное сияние в ближайший час! Пора на охоту!",
		Body: "Проверяйте облачность и отправляйтесь за северным сиянем! " +
			"Сейчас самое время!",
	},
	"cn": {
		Title: "极光将在一小时内出现！",
		Body:  "确认无云，出发去追极光吧！现在正是最佳时机",
	},
}

// Locales lists the supported notification locales. Broadcast fanout
// iterates this slice so message order stays deterministic.
var Locales = []string{"ru", "cn"}

// LocalizedNotification returns the alert text for a locale, falling back to
// DefaultLocale for unknown ones.
func LocalizedNotification(locale string) Notification {
	if n, ok := notificationCatalog[locale]; ok {
		return n
	}
	return notificationCatalog[DefaultLocale]
}
