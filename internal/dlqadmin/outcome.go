package dlqadmin

import (
	"encoding/json"
	"net/http"

	apperrors "transbot-ops/internal/common/errors"
)

// Outcome is a fully formed HTTP response. Replay outcomes carry the
// worker's response unchanged.
type Outcome struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// WriteTo writes the outcome to w.
func (o Outcome) WriteTo(w http.ResponseWriter) {
	if o.ContentType != "" {
		w.Header().Set("Content-Type", o.ContentType)
	}
	w.WriteHeader(o.StatusCode)
	_, _ = w.Write(o.Body)
}

func jsonOutcome(status int, v interface{}) Outcome {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"ok":false,"error":"encoding failed"}`)
	}
	return Outcome{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        append(body, '\n'),
	}
}

// ErrorOutcome renders err as {"ok":false,"error":<public message>} with the
// status its type maps to.
func ErrorOutcome(err error) Outcome {
	message := "internal error"
	if appErr, ok := apperrors.As(err); ok {
		message = appErr.PublicMessage()
	}
	return jsonOutcome(apperrors.HTTPStatus(err), map[string]interface{}{"ok": false, "error": message})
}

var errReplayNotConfigured = apperrors.UnavailableError("replay worker is not configured", nil).
	WithCode(CodeReplayWorkerNotConfigured)

// InvalidJSON is returned by handlers for an undecodable POST body.
func InvalidJSON(cause error) error {
	return apperrors.ValidationError("request body is not valid JSON").
		WithCode(CodeInvalidJSON).
		WithContext("cause", cause.Error())
}

// dataError surfaces the storage message to the operator.
func dataError(err error) error {
	return apperrors.InternalError(err.Error(), err)
}
