// Package jsonrpc provides the minimal JSON-RPC 2.0 envelope shared by every
// transport adapter's outbound client and by the proxy gateway's inbound
// dispatch: requests, notifications, responses, and batch/notification
// classification by structural peek rather than committing to one schema.
package jsonrpc

import "encoding/json"

const Version = "2.0"

// Request is an outbound (or inbound, at the gateway) JSON-RPC call that
// expects a Response. ID is carried as json.RawMessage so it round-trips
// whatever shape the caller used (number or string) without a lossy
// float64 conversion.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Notification is a Request with no ID: it produces no Response.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC reply: exactly one of Result/Error is populated.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// peek is the structural-classification helper: pointer fields let a single
// Unmarshal tell us which top-level keys were present without erroring on
// the ones that weren't, distinguishing request/notification/response
// without four separate parse attempts.
type peek struct {
	ID     *json.RawMessage `json:"id"`
	Method *string          `json:"method"`
	Result *json.RawMessage `json:"result"`
	Error  *Error           `json:"error"`
}

// MessageKind classifies a single raw JSON-RPC object.
type MessageKind int

const (
	KindInvalid MessageKind = iota
	KindRequest
	KindNotification
	KindResponse
)

// Classify peeks at raw to determine whether it is a request, a
// notification, or a response, without fully committing to one struct.
func Classify(raw []byte) MessageKind {
	var p peek
	if err := json.Unmarshal(raw, &p); err != nil {
		return KindInvalid
	}
	if p.Method != nil {
		if p.ID != nil {
			return KindRequest
		}
		return KindNotification
	}
	if p.Result != nil || p.Error != nil {
		return KindResponse
	}
	return KindInvalid
}

// IsBatch reports whether raw is a JSON array rather than a single object.
func IsBatch(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

// NewResult builds a success Response for id with result marshaled to JSON.
func NewResult(id json.RawMessage, result any) (*Response, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{JSONRPC: Version, ID: id, Result: data}, nil
}

// NewError builds a failure Response for id.
func NewError(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message}}
}

// Incoming is a single element of an inbound POST body (request or
// notification, from the gateway's point of view). HasID distinguishes a
// present-but-null id from an absent one: a null id still marks a request,
// only a missing "id" key marks a notification.
type Incoming struct {
	Method string
	ID     json.RawMessage
	HasID  bool
	Params json.RawMessage
}

// incomingPeek keeps ID as a plain json.RawMessage rather than a pointer:
// a present id, even a JSON null, decodes to its raw bytes, while a
// missing key leaves it nil. (A pointer field would be set to nil by a
// null id and lose that distinction.)
type incomingPeek struct {
	Method string          `json:"method"`
	ID     json.RawMessage `json:"id"`
	Params json.RawMessage `json:"params"`
}

// ParseIncoming decodes a single JSON-RPC object from the gateway's inbound
// POST body. A message lacking an "id" key is a notification per JSON-RPC
// 2.0.
func ParseIncoming(raw json.RawMessage) (Incoming, error) {
	var p incomingPeek
	if err := json.Unmarshal(raw, &p); err != nil {
		return Incoming{}, err
	}
	in := Incoming{Method: p.Method, Params: p.Params}
	if p.ID != nil {
		in.HasID = true
		in.ID = p.ID
	}
	return in, nil
}

// EncodeID marshals a monotonic numeric request id. Transport adapters use
// monotonic per-session integer ids for their own correlation tables —
// string ids risk collision across callers — independent of whatever id
// shape the gateway's own callers used upstream.
func EncodeID(id int64) json.RawMessage {
	b, _ := json.Marshal(id)
	return b
}

// DecodeID extracts an int64 id from raw. Returns false if raw is absent or
// not a JSON number.
func DecodeID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}
