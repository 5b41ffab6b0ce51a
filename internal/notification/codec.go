package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	actionSegment   = "|"
	hintSegment     = "|"
	keyValueSegment = "!!!"
)

// Flat field names. They are part of the transport and storage format.
const (
	FieldID            = "id"
	FieldAppName       = "appName"
	FieldAppIcon       = "appIcon"
	FieldSummary       = "summary"
	FieldBody          = "body"
	FieldActions       = "actions"
	FieldHints         = "hints"
	FieldReplacesID    = "replacesId"
	FieldExpireTimeout = "expireTimeout"
	FieldCTime         = "cTime"
	FieldEnablePreview = "enablePreview"
)

// Fields lists every key written by ToMap.
var Fields = []string{
	FieldID, FieldAppName, FieldAppIcon, FieldSummary, FieldBody, FieldActions,
	FieldHints, FieldReplacesID, FieldExpireTimeout, FieldCTime, FieldEnablePreview,
}

// ErrOddActions flags an action list whose id/label pairing is broken.
var ErrOddActions = errors.New("notification: odd number of action tokens")

// EncodeActions joins action tokens with "|". An empty list encodes to "".
func EncodeActions(actions []string) string {
	return strings.Join(actions, actionSegment)
}

// DecodeActions splits s on "|". The empty string decodes to an empty list.
// When the token count is odd the parsed tokens are returned together with
// ErrOddActions.
func DecodeActions(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	actions := strings.Split(s, actionSegment)
	if len(actions)%2 == 1 {
		return actions, fmt.Errorf("%w: got %d", ErrOddActions, len(actions))
	}
	return actions, nil
}

// EncodeHints writes every entry as key!!!value followed by "|", including
// the last one. Keys are written in sorted order.
func EncodeHints(hints map[string]string) string {
	if len(hints) == 0 {
		return ""
	}
	keys := make([]string, 0, len(hints))
	for k := range hints {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(keyValueSegment)
		b.WriteString(hints[k])
		b.WriteString(hintSegment)
	}
	return b.String()
}

// DecodeHints parses the EncodeHints format. Chunks that do not split into
// exactly one key and one value are skipped.
func DecodeHints(s string) map[string]string {
	out := map[string]string{}
	if s == "" {
		return out
	}
	for _, chunk := range strings.Split(s, hintSegment) {
		kv := strings.Split(chunk, keyValueSegment)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = kv[1]
	}
	return out
}

// ToMap flattens the record to text fields. BubbleID and ProcessedType are
// local to one display instance and are not written.
func (e Entity) ToMap() map[string]string {
	return map[string]string{
		FieldID:            strconv.FormatInt(e.id, 10),
		FieldAppName:       e.appName,
		FieldAppIcon:       e.appIcon,
		FieldSummary:       e.summary,
		FieldBody:          e.body,
		FieldActions:       e.ActionString(),
		FieldHints:         e.HintString(),
		FieldReplacesID:    strconv.FormatUint(uint64(e.replacesID), 10),
		FieldExpireTimeout: strconv.FormatInt(int64(e.expireTimeout), 10),
		FieldCTime:         strconv.FormatInt(e.cTime, 10),
		FieldEnablePreview: strconv.FormatBool(e.enablePreview),
	}
}

// FromMap rebuilds a record from ToMap output. An empty map yields New().
// Each missing or unparsable field falls back to its zero value on its own;
// decoding never fails.
func FromMap(m map[string]string) Entity {
	if len(m) == 0 {
		return New()
	}

	e := New()
	e.id = parseInt(m[FieldID], 64)
	e.appName = m[FieldAppName]
	e.appIcon = m[FieldAppIcon]
	e.summary = m[FieldSummary]
	e.body = m[FieldBody]
	_ = e.SetActionString(m[FieldActions])
	e.SetHintString(m[FieldHints])
	e.replacesID = uint32(parseUint(m[FieldReplacesID], 32))
	e.expireTimeout = int32(parseInt(m[FieldExpireTimeout], 32))
	e.cTime = parseInt(m[FieldCTime], 64)
	e.enablePreview, _ = strconv.ParseBool(strings.TrimSpace(m[FieldEnablePreview]))
	return e
}

// Encode serializes the flat map to a single string (a JSON object).
func Encode(e Entity) (string, error) {
	b, err := json.Marshal(e.ToMap())
	if err != nil {
		return "", fmt.Errorf("notification encode: %w", err)
	}
	return string(b), nil
}

// Decode is the inverse of Encode. The empty string yields the invalid
// default record and no error.
func Decode(s string) (Entity, error) {
	if strings.TrimSpace(s) == "" {
		return New(), nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return New(), fmt.Errorf("notification decode: %w", err)
	}
	return FromMap(m), nil
}

func parseInt(s string, bits int) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
	if err != nil {
		return 0
	}
	return v
}

func parseUint(s string, bits int) uint64 {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, bits)
	if err != nil {
		return 0
	}
	return v
}
