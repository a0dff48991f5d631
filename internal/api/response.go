package api

import (
	"encoding/json"
	"net/http"
	"time"

	xerrors "OpenMCP-Swap/internal/errors"
	"OpenMCP-Swap/internal/observability/metrics"
	"OpenMCP-Swap/internal/swap"
	"OpenMCP-Swap/internal/task"
	"OpenMCP-Swap/pkg/logger"
)

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// statusFor 把统一错误码映射为 HTTP 状态码。
func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeInvalidArgument, task.CodeTaskValidation, swap.CodeInvalidInput:
		return http.StatusBadRequest
	case xerrors.CodeNotFound, task.CodeTaskNotFound, swap.CodePoolNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict, task.CodeTaskConflict:
		return http.StatusConflict
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	case xerrors.CodeUpstreamFailure, swap.CodeQuoteFailed:
		return http.StatusBadGateway
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorMessage(w, err, "")
}

// writeErrorMessage 输出错误响应，message 为空时使用错误自身的描述。
func writeErrorMessage(w http.ResponseWriter, err error, message string) {
	body := errorBody{Code: string(xerrors.CodeUnknown), Message: message}
	if e, ok := xerrors.From(err); ok {
		body.Code = string(e.Code())
		body.Metadata = e.Metadata()
		if body.Message == "" {
			body.Message = e.Message()
		}
	} else if body.Message == "" {
		body.Message = xerrors.AttributesOf(xerrors.CodeUnknown).Message
	}
	status := statusFor(xerrors.Code(body.Code))
	if status >= http.StatusInternalServerError {
		logger.Named("api").Error("请求处理失败", "status", status, "error", err)
	}
	writeJSON(w, status, errorEnvelope{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument 记录每个路由的请求次数、耗时与错误数。
func instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.ObserveHTTPRequest(pattern, r.Method, recorder.status, time.Since(started))
	})
}
