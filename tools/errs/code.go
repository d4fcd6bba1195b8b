package errs

import "net/http"

// Error codes. 11xx are caller faults, 12xx are client-side transport
// conditions (never produced by the server), 15xx are server faults.
const (
	UnauthorizedError        = 1101
	RecordNotFoundError      = 1102
	ArgsError                = 1103
	TokenExpiredError        = 1104
	TransientNetworkError    = 1201
	ChannelDisconnectedError = 1202
	ServerInternalError      = 1500
)

var (
	ErrUnauthorized        = NewCodeError(UnauthorizedError, "unauthorized")
	ErrNotFound            = NewCodeError(RecordNotFoundError, "record not found")
	ErrArgs                = NewCodeError(ArgsError, "invalid argument")
	ErrTokenExpired        = NewCodeError(TokenExpiredError, "token expired or invalid")
	ErrTransientNetwork    = NewCodeError(TransientNetworkError, "transient network error")
	ErrChannelDisconnected = NewCodeError(ChannelDisconnectedError, "event channel disconnected")
	ErrInternal            = NewCodeError(ServerInternalError, "server internal error")
)

// HTTPStatus maps a coded error onto the status the REST layer responds
// with. Unknown codes fall through to 500.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case UnauthorizedError, TokenExpiredError:
		return http.StatusUnauthorized
	case RecordNotFoundError:
		return http.StatusNotFound
	case ArgsError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
