package http_wrappers

import "github.com/wes-dispatch/wes-dispatch/internal/messages"

// RequestWrapper is the view of an incoming request the run handlers need.
type RequestWrapper interface {
	Method() string
	URI() string
	Header(key string) string
	Query(key string) []string
	PathValue(name string) string
	BodyAsBytes() ([]byte, error)
}

// ResponseWrapper writes run resources and error responses. Error and
// ErrorWithMessageCode render through the global error handler.
type ResponseWrapper interface {
	Error(err error, requestId string)
	ErrorWithMessageCode(requestId string, messageCode *messages.MessageCode, messageParams ...any)
	WriteJSON(v any, code int)

	SetHeader(key string, value string)
	SetStatusCode(code int)
	Write(buf []byte) (n int, err error)
}
