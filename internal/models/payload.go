package models

// Defaults applied when a push payload arrives without a title or body.
const (
	DefaultTitle = "HomePal Alert"
	DefaultBody  = "New event detected"
)

// NotificationPayload is what the dispatcher hands to delivery channels and
// registry subscribers. SourceEvent is a correlation reference only; channels
// must not mutate it.
type NotificationPayload struct {
	Title       string
	Body        string
	Icon        string
	SourceEvent *NormalizedEvent
}

// PushNotification is the notification block of the wire shape consumed by
// the dashboard's service worker.
type PushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
}

// PushMessage is the JSON shape sent to dashboard WebSocket clients and
// accepted from upstream "notification" frames:
// {"notification":{"title","body"},"data":...}.
type PushMessage struct {
	Notification PushNotification `json:"notification"`
	Data         *RawEvent        `json:"data,omitempty"`
}

// Normalize fills missing title/body with the documented defaults. Malformed
// input is repaired here, at the boundary, so nothing downstream needs
// nil-or-empty checks.
func (m *PushMessage) Normalize() {
	if m.Notification.Title == "" {
		m.Notification.Title = DefaultTitle
	}
	if m.Notification.Body == "" {
		m.Notification.Body = DefaultBody
	}
}

// Payload converts an inbound push message to the dispatcher's payload form.
func (m PushMessage) Payload() NotificationPayload {
	return NotificationPayload{
		Title: m.Notification.Title,
		Body:  m.Notification.Body,
		Icon:  m.Notification.Icon,
	}
}
