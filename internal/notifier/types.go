package notifier

import "time"

// Config controls the notification center.
type Config struct {
	Enabled        bool
	Workers        int
	QueueSize      int
	RatePerSec     int
	RetryMax       int
	RetryBase      time.Duration
	RetryMaxDelay  time.Duration
	DefaultTimeout time.Duration // bubble lifetime for a negative expire timeout
	HistorySize    int
}

// CloseReason values follow the NotificationClosed signal of the desktop
// notifications protocol.
type CloseReason uint32

const (
	CloseExpired   CloseReason = 1
	CloseDismissed CloseReason = 2
	CloseByCall    CloseReason = 3
	CloseUndefined CloseReason = 4
)

func (r CloseReason) String() string {
	switch r {
	case CloseExpired:
		return "expired"
	case CloseDismissed:
		return "dismissed"
	case CloseByCall:
		return "closed"
	default:
		return "undefined"
	}
}

type HistoryItem struct {
	At       time.Time
	BubbleID uint32
	AppName  string
	Summary  string
}

// Event is the payload of the notification.* bus events.
type Event struct {
	BubbleID uint32      `json:"bubble_id"`
	ID       int64       `json:"id,omitempty"`
	AppName  string      `json:"app_name,omitempty"`
	Summary  string      `json:"summary,omitempty"`
	Reason   CloseReason `json:"reason,omitempty"`
	Action   string      `json:"action,omitempty"`
	Replaced bool        `json:"replaced,omitempty"`
	Error    string      `json:"error,omitempty"`
	At       time.Time   `json:"at"`
}
