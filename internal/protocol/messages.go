package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Status values carried by every reply.
const (
	StatusOK   = "OK"
	StatusFail = "FAIL"
)

// Command names. Matching is exact and case-sensitive.
const (
	CmdAuth     = "AUTH"
	CmdRegister = "REGISTER"
	CmdList     = "LIST"
	CmdRemove   = "REMOVE"
	CmdCD       = "CD"
	CmdMkdir    = "MKDIR"
	CmdRmdir    = "RMDIR"
)

// Authentication modes accepted by AUTH.
const (
	ModePublic  = "public"
	ModePrivate = "private"
)

// Request is a decoded COMMAND frame. Mode is only meaningful for AUTH;
// HasMode distinguishes an absent key from an empty string.
type Request struct {
	Cmd     string
	Mode    string
	HasMode bool
	Args    Args
}

// Args holds the raw values of the request's "args" object. Values are
// type-checked when a handler asks for them.
type Args map[string]json.RawMessage

// String returns the string argument under key. An absent key yields a
// MISSING_ARGUMENT error and a non-string value a JSON_TYPE_ERROR.
func (a Args) String(key string) (string, error) {
	raw, ok := a[key]
	if !ok {
		return "", Missing(key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || isNull(raw) {
		return "", Errorf(JSONTypeError, "argument %q must be a string", key)
	}
	return s, nil
}

// Strings fetches several string arguments, failing on the first key that is
// missing or mistyped. All keys are checked before any side effect happens.
func (a Args) Strings(keys ...string) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := a.String(k)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// DecodeRequest parses a COMMAND payload. Malformed JSON yields a
// JSON_PARSE_ERROR, a missing "cmd" a MISSING_ARGUMENT, and wrongly typed
// top-level fields a JSON_TYPE_ERROR.
func DecodeRequest(payload []byte) (*Request, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, Errorf(JSONTypeError, "request must be a json object")
		}
		return nil, Errorf(JSONParseError, "%v", err)
	}
	if top == nil {
		return nil, Errorf(JSONTypeError, "request must be a json object")
	}

	rawCmd, ok := top["cmd"]
	if !ok {
		return nil, Missing("cmd")
	}
	req := &Request{Args: Args{}}
	if err := json.Unmarshal(rawCmd, &req.Cmd); err != nil || isNull(rawCmd) {
		return nil, Errorf(JSONTypeError, "cmd must be string")
	}

	if rawArgs, ok := top["args"]; ok && !isNull(rawArgs) {
		var args map[string]json.RawMessage
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, Errorf(JSONTypeError, "args must be an object")
		}
		req.Args = args
	}

	if rawMode, ok := top["mode"]; ok {
		if err := json.Unmarshal(rawMode, &req.Mode); err != nil || isNull(rawMode) {
			return nil, Errorf(JSONTypeError, "mode must be string")
		}
		req.HasMode = true
	}
	return req, nil
}

// Reply is the JSON payload of every server response. Data and Uwd are only
// present on OK replies; an OK reply always carries a data object.
type Reply struct {
	Status  string  `json:"status"`
	Code    Code    `json:"code"`
	Message string  `json:"message"`
	Data    any     `json:"data,omitempty"`
	Uwd     *string `json:"uwd,omitempty"`
}

// OK builds a success reply. A nil data map is sent as an empty object.
func OK(message string, data map[string]any, uwd string) *Reply {
	if data == nil {
		data = map[string]any{}
	}
	return &Reply{Status: StatusOK, Code: Success, Message: message, Data: data, Uwd: &uwd}
}

// Fail builds a failure reply.
func Fail(code Code, message string) *Reply {
	return &Reply{Status: StatusFail, Code: code, Message: message}
}

// FailFrom converts a protocol error into a failure reply.
func FailFrom(e *Error) *Reply {
	return Fail(e.Code, e.Message)
}

// OK reports whether the reply is a success.
func (r *Reply) OK() bool { return r.Status == StatusOK && r.Code == Success }

// WorkingDir returns the uwd carried by an OK reply, or "".
func (r *Reply) WorkingDir() string {
	if r.Uwd == nil {
		return ""
	}
	return *r.Uwd
}

// Err returns nil for OK replies and the failure as an *Error otherwise.
func (r *Reply) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{Code: r.Code, Message: r.Message}
}

// Entry is one item of a LIST reply.
type Entry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size uint64 `json:"size"`
}

// Entry type names.
const (
	EntryFile      = "file"
	EntryDirectory = "directory"
	EntrySymlink   = "symlink"
	EntryOther     = "other"
)

// Outgoing is a request as built by a client. Mode is omitted unless set.
type Outgoing struct {
	Cmd  string            `json:"cmd"`
	Mode string            `json:"mode,omitempty"`
	Args map[string]string `json:"args"`
}

// Marshal encodes the request to its JSON payload.
func (o *Outgoing) Marshal() ([]byte, error) {
	if o.Args == nil {
		o.Args = map[string]string{}
	}
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return data, nil
}

// DecodeReply parses a reply payload.
func DecodeReply(payload []byte) (*Reply, error) {
	var r Reply
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("parsing reply: %w", err)
	}
	return &r, nil
}

// DecodeEntries extracts the "files" array from a LIST reply.
func (r *Reply) DecodeEntries() ([]Entry, error) {
	buf, err := json.Marshal(r.Data)
	if err != nil {
		return nil, err
	}
	var listing struct {
		Files *[]Entry `json:"files"`
	}
	if err := json.Unmarshal(buf, &listing); err != nil {
		return nil, fmt.Errorf("parsing files: %w", err)
	}
	if listing.Files == nil {
		return nil, fmt.Errorf("reply has no files")
	}
	return *listing.Files, nil
}
