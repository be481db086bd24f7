package account

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/kasuganosora/bondageclub/server/model"
)

// ErrInvalidRequest is returned by DecodeRequest for payloads that do not fit
// the event's shape.
var ErrInvalidRequest = errors.New("invalid request data")

// Request is one decoded inbound account event.
type Request interface {
	Event() string
}

type CreateRequest struct {
	AccountName string
	Password    string
	Name        string
	Email       string
}

type LoginRequest struct {
	AccountName string
	Password    string
}

type BeepRequest struct {
	MemberNumber uint32
	BeepType     *string
	Message      json.RawMessage
}

type QueryRequest struct {
	Query string
}

// UpdateRequest carries only the whitelisted fields. A nil field was absent
// (or null) in the payload.
type UpdateRequest struct {
	Name           *string          `json:"Name"`
	ItemPermission *uint8           `json:"ItemPermission"`
	FriendList     *[]uint32        `json:"FriendList"`
	WhiteList      *[]uint32        `json:"WhiteList"`
	BlackList      *[]uint32        `json:"BlackList"`
	Creation       *int64           `json:"Creation"`
	LastLogin      *int64           `json:"LastLogin"`
	ChatRoom       json.RawMessage  `json:"ChatRoom"`
	Ownership      *model.Ownership `json:"Ownership"`
	Description    *string          `json:"Description"`
	Title          *string          `json:"Title"`

	InventoryData        json.RawMessage `json:"InventoryData"`
	ArousalSettings      json.RawMessage `json:"ArousalSettings"`
	OnlineSharedSettings json.RawMessage `json:"OnlineSharedSettings"`
	Game                 json.RawMessage `json:"Game"`
	MapData              json.RawMessage `json:"MapData"`
	LabelColor           json.RawMessage `json:"LabelColor"`
	Appearance           json.RawMessage `json:"Appearance"`
	Reputation           json.RawMessage `json:"Reputation"`
	BlockItems           json.RawMessage `json:"BlockItems"`
	LimitedItems         json.RawMessage `json:"LimitedItems"`
	FavoriteItems        json.RawMessage `json:"FavoriteItems"`
	Skill                json.RawMessage `json:"Skill"`
	Nickname             json.RawMessage `json:"Nickname"`
	Crafting             json.RawMessage `json:"Crafting"`
	Log                  json.RawMessage `json:"Log"`
}

func (*CreateRequest) Event() string { return EventAccountCreate }
func (*LoginRequest) Event() string  { return EventAccountLogin }
func (*UpdateRequest) Event() string { return EventAccountUpdate }
func (*BeepRequest) Event() string   { return EventAccountBeep }
func (*QueryRequest) Event() string  { return EventAccountQuery }

// Events lists the inbound events DecodeRequest understands.
var Events = []string{
	EventAccountCreate,
	EventAccountLogin,
	EventAccountUpdate,
	EventAccountBeep,
	EventAccountQuery,
}

// ErrorEvent is the event used to report an undecodable payload for event.
func ErrorEvent(event string) string {
	if event == EventAccountCreate {
		return EventCreationResponse
	}
	return EventLoginResponse
}

// DecodeRequest parses payload into the request type for event. Required
// fields must be present; unknown fields are ignored. Keys match field names
// exactly, so "accountname" is an unknown field, not AccountName.
func DecodeRequest(event string, payload json.RawMessage) (Request, error) {
	if !isObject(payload) {
		return nil, ErrInvalidRequest
	}
	switch event {
	case EventAccountCreate:
		var raw struct {
			AccountName *string
			Password    *string
			Name        *string
			Email       *string
		}
		if err := decodeExact(payload, &raw); err != nil {
			return nil, wrapInvalid(err)
		}
		if raw.AccountName == nil || raw.Password == nil || raw.Name == nil {
			return nil, ErrInvalidRequest
		}
		req := &CreateRequest{AccountName: *raw.AccountName, Password: *raw.Password, Name: *raw.Name}
		if raw.Email != nil {
			req.Email = *raw.Email
		}
		return req, nil

	case EventAccountLogin:
		var raw struct {
			AccountName *string
			Password    *string
		}
		if err := decodeExact(payload, &raw); err != nil {
			return nil, wrapInvalid(err)
		}
		if raw.AccountName == nil || raw.Password == nil {
			return nil, ErrInvalidRequest
		}
		return &LoginRequest{AccountName: *raw.AccountName, Password: *raw.Password}, nil

	case EventAccountUpdate:
		req := &UpdateRequest{}
		if err := decodeExact(payload, req); err != nil {
			return nil, wrapInvalid(err)
		}
		return req, nil

	case EventAccountBeep:
		var raw struct {
			MemberNumber *uint32
			BeepType     *string
			Message      json.RawMessage
		}
		if err := decodeExact(payload, &raw); err != nil {
			return nil, wrapInvalid(err)
		}
		if raw.MemberNumber == nil {
			return nil, ErrInvalidRequest
		}
		return &BeepRequest{MemberNumber: *raw.MemberNumber, BeepType: raw.BeepType, Message: raw.Message}, nil

	case EventAccountQuery:
		var raw struct {
			Query *string
		}
		if err := decodeExact(payload, &raw); err != nil {
			return nil, wrapInvalid(err)
		}
		if raw.Query == nil {
			return nil, ErrInvalidRequest
		}
		return &QueryRequest{Query: *raw.Query}, nil
	}
	return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidRequest, event)
}

// decodeExact unmarshals an object into the struct v points to, keeping only
// keys that equal a field name byte for byte. Nested struct fields are
// filtered the same way.
func decodeExact(payload json.RawMessage, v any) error {
	filtered, err := exactKeys(payload, reflect.TypeOf(v).Elem())
	if err != nil {
		return err
	}
	return json.Unmarshal(filtered, v)
}

func exactKeys(raw json.RawMessage, t reflect.Type) (json.RawMessage, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || !isObject(raw) {
		return raw, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	fields := structFields(t)
	for k, v := range obj {
		ft, ok := fields[k]
		if !ok {
			delete(obj, k)
			continue
		}
		nested, err := exactKeys(v, ft)
		if err != nil {
			return nil, err
		}
		obj[k] = nested
	}
	return json.Marshal(obj)
}

// structFields maps the JSON name of each exported field of t to its type.
func structFields(t reflect.Type) map[string]reflect.Type {
	out := make(map[string]reflect.Type, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag == "-" {
			continue
		} else if tag != "" {
			name = tag
		}
		out[name] = f.Type
	}
	return out
}

func wrapInvalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// present reports whether an opaque field was sent with a non-null value.
func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// decodeOpaque turns a client payload into plain maps, slices and scalars that
// both BSON and JSON encoders can write back. Integral numbers become int64.
func decodeOpaque(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	default:
		return v
	}
}
