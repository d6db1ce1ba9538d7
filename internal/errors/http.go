package errors

import "net/http"

// HTTPStatus returns the status code the error should be reported with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if HasCode(err, CodeBadRequest) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// PublicMessage returns a message that is safe to show to HTTP clients.
// Internal details (paths, wrapped causes) are never included.
func PublicMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		if ke := FromError(err, CodeBadRequest); ke != nil && ke.Suggestion != "" {
			return ke.Message + ". " + ke.Suggestion
		}
		return New(CodeBadRequest).Message
	case http.StatusOK:
		return ""
	default:
		return http.StatusText(http.StatusInternalServerError)
	}
}
