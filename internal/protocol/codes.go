package protocol

import "fmt"

// Code is a reply status code. The numeric values are part of the wire
// contract and must never change.
type Code uint32

const (
	Success Code = 0

	UserNotFound         Code = 1000
	IncorrectPassword    Code = 1001
	UserAlreadyExists    Code = 1002
	UserRegister         Code = 1003
	AlreadyAuthenticated Code = 1004

	JSONTypeError   Code = 1100
	UnknownCommand  Code = 1101
	MissingArgument Code = 1102
	JSONParseError  Code = 1103

	AccessDenied        Code = 1200
	TargetNotFound      Code = 1201
	FSError             Code = 1202
	TargetAlreadyExists Code = 1203
)

var codeNames = map[Code]string{
	Success:              "SUCCESS",
	UserNotFound:         "USER_NOT_FOUND",
	IncorrectPassword:    "INCORRECT_PASSWORD",
	UserAlreadyExists:    "USER_ALREADY_EXISTS",
	UserRegister:         "USER_REGISTER",
	AlreadyAuthenticated: "ALREADY_AUTHENTICATED",
	JSONTypeError:        "JSON_TYPE_ERROR",
	UnknownCommand:       "UNKNOWN_COMMAND",
	MissingArgument:      "MISSING_ARGUMENT",
	JSONParseError:       "JSON_PARSE_ERROR",
	AccessDenied:         "ACCESS_DENIED",
	TargetNotFound:       "TARGET_NOT_FOUND",
	FSError:              "FS_ERROR",
	TargetAlreadyExists:  "TARGET_ALREADY_EXISTS",
}

var codeDescriptions = map[Code]string{
	Success:              "success",
	UserNotFound:         "username not found",
	IncorrectPassword:    "incorrect password",
	UserAlreadyExists:    "username already exists",
	UserRegister:         "could not register user",
	AlreadyAuthenticated: "already authenticated",
	JSONTypeError:        "json type error",
	UnknownCommand:       "unknown command",
	MissingArgument:      "missing argument",
	JSONParseError:       "json parse error",
	AccessDenied:         "access denied",
	TargetNotFound:       "target does not exist",
	FSError:              "filesystem error",
	TargetAlreadyExists:  "target already exists",
}

// String returns the symbolic name, e.g. "ACCESS_DENIED".
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE_%d", uint32(c))
}

// Description returns the human-readable meaning of the code.
func (c Code) Description() string {
	if d, ok := codeDescriptions[c]; ok {
		return d
	}
	return "unknown error"
}

// Error is a recoverable command failure. It becomes exactly one FAIL reply
// and never terminates the connection.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Code.Description())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds an *Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Missing reports an absent required argument key.
func Missing(key string) *Error {
	return &Error{Code: MissingArgument, Message: key}
}
