package notification

import (
	"maps"
	"slices"
	"time"
)

// ProcessedType tracks what the user did with a notification.
type ProcessedType int

const (
	ProcessedNone ProcessedType = iota
	NotProcessed
	Processed
	Removed
)

func (t ProcessedType) String() string {
	switch t {
	case ProcessedNone:
		return "none"
	case NotProcessed:
		return "not_processed"
	case Processed:
		return "processed"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the known states.
func (t ProcessedType) Valid() bool { return t >= ProcessedNone && t <= Removed }

// nowMillis stamps CTime on full construction. Tests may swap it.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// Entity is a single notification record.
//
// Entity has value semantics: a plain assignment yields an independent copy
// because the list and map fields are only ever exposed or accepted as copies.
type Entity struct {
	id            int64
	appName       string
	appIcon       string
	summary       string
	body          string
	actions       []string
	hints         map[string]string
	bubbleID      uint32
	replacesID    uint32
	expireTimeout int32
	cTime         int64
	processedType ProcessedType
	enablePreview bool
}

// New returns an empty, invalid record.
func New() Entity {
	return Entity{
		id:            -1,
		processedType: NotProcessed,
		enablePreview: true,
	}
}

// NewWithID returns a record carrying only an id and application name.
func NewWithID(id int64, appName string) Entity {
	e := New()
	e.id = id
	e.appName = appName
	return e
}

// NewFull builds a record from the fields of a Notify call and stamps the
// creation time. The id stays unassigned until the record is stored.
func NewFull(appName string, replacesID uint32, appIcon, summary, body string, actions []string, hints map[string]string, expireTimeout int32) Entity {
	e := New()
	e.appName = appName
	e.replacesID = replacesID
	e.appIcon = appIcon
	e.summary = summary
	e.body = body
	e.SetActions(actions)
	e.SetHints(hints)
	e.expireTimeout = expireTimeout
	e.cTime = nowMillis()
	return e
}

// IsValid reports whether the record has been assigned a real id.
func (e Entity) IsValid() bool { return e.id > 0 }

// Equal compares records by id. Invalid records never compare equal.
func (e Entity) Equal(other Entity) bool {
	return e.IsValid() && other.IsValid() && e.id == other.id
}

// Clone returns a deep copy.
func (e Entity) Clone() Entity {
	c := e
	c.actions = slices.Clone(e.actions)
	if e.hints != nil {
		c.hints = maps.Clone(e.hints)
	}
	return c
}

func (e Entity) ID() int64       { return e.id }
func (e *Entity) SetID(id int64) { e.id = id }

func (e Entity) AppName() string     { return e.appName }
func (e *Entity) SetAppName(v string) { e.appName = v }

func (e Entity) AppIcon() string     { return e.appIcon }
func (e *Entity) SetAppIcon(v string) { e.appIcon = v }

func (e Entity) Summary() string     { return e.summary }
func (e *Entity) SetSummary(v string) { e.summary = v }

func (e Entity) Body() string     { return e.body }
func (e *Entity) SetBody(v string) { e.body = v }

// Actions returns a copy of the action id/label tokens.
func (e Entity) Actions() []string { return slices.Clone(e.actions) }

// SetActions stores a copy of actions. A dangling last token (odd count) is
// dropped so the id/label pairing always holds.
func (e *Entity) SetActions(actions []string) {
	if len(actions)%2 == 1 {
		actions = actions[:len(actions)-1]
	}
	e.actions = slices.Clone(actions)
}

// ActionString returns the encoded action list.
func (e Entity) ActionString() string { return EncodeActions(e.actions) }

// SetActionString decodes s into the action list. An odd token count is
// reported as ErrOddActions; the complete pairs are still stored.
func (e *Entity) SetActionString(s string) error {
	actions, err := DecodeActions(s)
	e.SetActions(actions)
	return err
}

// Hints returns a copy of the hint map.
func (e Entity) Hints() map[string]string {
	if e.hints == nil {
		return map[string]string{}
	}
	return maps.Clone(e.hints)
}

func (e *Entity) SetHints(h map[string]string) {
	if len(h) == 0 {
		e.hints = nil
		return
	}
	e.hints = maps.Clone(h)
}

// Hint returns a single hint value.
func (e Entity) Hint(key string) (string, bool) {
	v, ok := e.hints[key]
	return v, ok
}

// HintString returns the encoded hint map.
func (e Entity) HintString() string { return EncodeHints(e.hints) }

func (e *Entity) SetHintString(s string) { e.SetHints(DecodeHints(s)) }

func (e Entity) ReplacesID() uint32      { return e.replacesID }
func (e *Entity) SetReplacesID(v uint32) { e.replacesID = v }

// ExpireTimeout is in milliseconds. Negative and zero values keep the meaning
// the sender gave them (server default / never).
func (e Entity) ExpireTimeout() int32      { return e.expireTimeout }
func (e *Entity) SetExpireTimeout(ms int32) { e.expireTimeout = ms }

// CTime is the creation time in milliseconds since the epoch.
func (e Entity) CTime() int64      { return e.cTime }
func (e *Entity) SetCTime(ms int64) { e.cTime = ms }

// CreatedAt returns CTime as a time.Time.
func (e Entity) CreatedAt() time.Time { return time.UnixMilli(e.cTime) }

func (e Entity) ProcessedType() ProcessedType      { return e.processedType }
func (e *Entity) SetProcessedType(t ProcessedType) { e.processedType = t }

// IsProcessed reports whether the user acted on the notification.
func (e Entity) IsProcessed() bool { return e.processedType == Processed }

func (e Entity) EnablePreview() bool      { return e.enablePreview }
func (e *Entity) SetEnablePreview(v bool) { e.enablePreview = v }

// BubbleID is the transient id of the on-screen bubble showing the record.
func (e Entity) BubbleID() uint32      { return e.bubbleID }
func (e *Entity) SetBubbleID(v uint32) { e.bubbleID = v }
