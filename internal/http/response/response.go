package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"stageportal/internal/common"
)

const genericInternalMessage = "internal server error"

var exposeInternal atomic.Bool

// SetDevelopment controls whether internal error messages reach clients.
func SetDevelopment(enabled bool) {
	exposeInternal.Store(enabled)
}

type errorBody struct {
	Error   common.Code       `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func Error(w http.ResponseWriter, err error) {
	body := errorBody{Error: common.CodeInternal, Message: genericInternalMessage}
	var appErr *common.Error
	if errors.As(err, &appErr) {
		body.Error = appErr.Code
		body.Message = appErr.Message
		body.Fields = appErr.Fields
	}
	if body.Error == common.CodeInternal {
		if exposeInternal.Load() && err != nil {
			body.Detail = err.Error()
		} else {
			body.Message = genericInternalMessage
		}
	}
	JSON(w, StatusFor(body.Error), body)
}

func StatusFor(code common.Code) int {
	switch code {
	case common.CodeValidation, common.CodeUnsupportedDocument, common.CodePayloadTooLarge:
		return http.StatusBadRequest
	case common.CodeUnauthorized:
		return http.StatusUnauthorized
	case common.CodeForbidden:
		return http.StatusForbidden
	case common.CodeNotFound:
		return http.StatusNotFound
	case common.CodeConflict:
		return http.StatusConflict
	case common.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
