package domain

// Category classifies a notification for presentation.
type Category string

const (
	CategorySuccess   Category = "success"
	CategoryInfo      Category = "info"
	CategoryWarning   Category = "warning"
	CategoryMilestone Category = "milestone"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySuccess, CategoryInfo, CategoryWarning, CategoryMilestone:
		return true
	}
	return false
}

// Notification is a user-facing alert shown in the bell menu.
type Notification struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Time        string   `json:"time"`
	Category    Category `json:"type"`
	Read        bool     `json:"read"`
	Action      string   `json:"action,omitempty"`
	ActionLabel string   `json:"actionLabel,omitempty"`
}

// NotificationEntry is the caller-supplied part of a notification.
type NotificationEntry struct {
	Text        string
	Category    Category
	Action      string
	ActionLabel string
}
