package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/wes-dispatch/wes-dispatch/internal/errorhandler"
	"github.com/wes-dispatch/wes-dispatch/internal/executioncontext"
	"github.com/wes-dispatch/wes-dispatch/internal/http_wrappers"
	"github.com/wes-dispatch/wes-dispatch/internal/logging"
	"github.com/wes-dispatch/wes-dispatch/internal/messages"
	"github.com/wes-dispatch/wes-dispatch/internal/serviceerrors"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

// maxBodyBytes bounds a submitted request body.
const maxBodyBytes = 4 << 20

var (
	_ http_wrappers.RequestWrapper  = (*ReqWrapper)(nil)
	_ http_wrappers.ResponseWrapper = (*RespWrapper)(nil)
)

type ReqWrapper struct {
	Request *http.Request
	// writer lets MaxBytesReader close the connection of an oversized request
	writer http.ResponseWriter
}

func NewRequestWrapper(r *http.Request, w http.ResponseWriter) *ReqWrapper {
	return &ReqWrapper{Request: r, writer: w}
}

func (r *ReqWrapper) Method() string {
	return r.Request.Method
}

func (r *ReqWrapper) URI() string {
	return r.Request.RequestURI
}

func (r *ReqWrapper) Header(key string) string {
	return r.Request.Header.Get(key)
}

func (r *ReqWrapper) Query(key string) []string {
	return r.Request.URL.Query()[key]
}

func (r *ReqWrapper) BodyAsBytes() ([]byte, error) {
	if r.Request.Body == nil {
		return nil, nil
	}
	defer r.Request.Body.Close()
	// an oversized body fails with *http.MaxBytesError instead of being truncated
	return io.ReadAll(http.MaxBytesReader(r.writer, r.Request.Body, maxBodyBytes))
}

func (r *ReqWrapper) PathValue(name string) string {
	return r.Request.PathValue(name)
}

type RespWrapper struct {
	writer http.ResponseWriter
	ctx    *executioncontext.ExecutionContext
}

func NewRespWrapper(w http.ResponseWriter, ctx *executioncontext.ExecutionContext) *RespWrapper {
	return &RespWrapper{writer: w, ctx: ctx}
}

// Error writes the resolved error response. Every failure leaving the service
// goes through here so the status codes stay consistent.
func (w *RespWrapper) Error(err error, requestId string) {
	w.writeError(errorhandler.Resolve(err), requestId)
}

func (w *RespWrapper) ErrorWithMessageCode(requestId string, messageCode *messages.MessageCode, messageParams ...any) {
	w.Error(serviceerrors.NewServiceError(messageCode, messageParams...), requestId)
}

func (w *RespWrapper) writeError(response *api.ErrorResponse, requestId string) {
	logging.LogRequestFailed(w.ctx, response.StatusCode, response.Msg)
	if requestId != "" {
		w.SetHeader("X-Request-Id", requestId)
	}
	w.write(response, response.StatusCode)
}

func (w *RespWrapper) SetHeader(key string, value string) {
	w.writer.Header().Set(key, value)
}

func (w *RespWrapper) SetStatusCode(code int) {
	w.writer.WriteHeader(code)
}

func (w *RespWrapper) Write(buf []byte) (int, error) {
	return w.writer.Write(buf)
}

func (w *RespWrapper) WriteJSON(v any, code int) {
	logging.LogRequestSuccess(w.ctx, code, nil)
	w.write(v, code)
}

func (w *RespWrapper) write(v any, code int) {
	body, err := json.Marshal(v)
	if err != nil {
		w.ctx.Logger.Error("Failed to encode the response", "error", err.Error())
		w.SetHeader("Content-Type", "application/json")
		w.SetStatusCode(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status_code":500,"msg":"failed to encode the response"}`))
		return
	}
	w.SetHeader("Content-Type", "application/json")
	w.SetStatusCode(code)
	_, _ = w.Write(body)
}
