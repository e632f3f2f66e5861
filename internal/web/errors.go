package web

// errors.go turns handler errors into JSON error responses.
//
// Request-shape errors (*core.InputError) keep their own descriptive text in
// the "error" field, since it names what is wrong with the upload. Any other
// error is logged in full and answered with the mapped user message only.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/hospital-bulk/internal/core"
	"github.com/JonMunkholm/hospital-bulk/internal/history"
	"github.com/JonMunkholm/hospital-bulk/internal/logging"
)

var (
	errRateLimited       = errors.New("rate limit exceeded")
	errNoFile            = errors.New("no file provided")
	errInvalidForm       = errors.New("invalid form")
	errFileTooLarge      = errors.New("file too large")
	errHistoryDisabled   = errors.New("import history is not enabled")
	errReadUploadedFile  = errors.New("failed to read uploaded file")
	errHistoryUnreadable = errors.New("failed to load import history")
)

// ErrorResponse is the JSON body of every error answer.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

// respondError logs err with the request id and writes the JSON error body.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	logger.Warn("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	text := msg.Message
	var inputErr *core.InputError
	if errors.As(err, &inputErr) || isClientError(err) {
		text = err.Error()
	}

	writeJSON(w, r, status, ErrorResponse{
		Error:  text,
		Action: msg.Action,
		Code:   msg.Code,
	})
}

// isClientError reports errors whose text is safe and useful to show as is.
func isClientError(err error) bool {
	for _, known := range []error{
		errRateLimited, errNoFile, errInvalidForm, errFileTooLarge,
		errHistoryDisabled, history.ErrNotFound, core.ErrTooManyImports,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
