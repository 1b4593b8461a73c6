package uploader

import (
	"errors"
	"net/http"

	"github.com/reelproof/reelproof/internal/common"
)

// httpStatus extracts an HTTP status code from err, if it carries one.
func httpStatus(err error) (int, bool) {
	var he *common.HTTPError
	if errors.As(err, &he) {
		return he.Code, true
	}
	return 0, false
}

func isAuthStatus(err error) bool {
	code, ok := httpStatus(err)
	return ok && (code == http.StatusUnauthorized || code == http.StatusForbidden)
}

// classifyTransfer maps a transport error to a user-facing failure.
// resumed marks attempts continuing a previously started upload, for which a
// 404/410 means the server-side record is gone.
func classifyTransfer(err error, resumed bool) Failure {
	code, ok := httpStatus(err)
	if !ok {
		return Failure{Kind: FailureNetwork, Message: "network error"}
	}
	switch {
	case code == http.StatusRequestEntityTooLarge:
		return Failure{Kind: FailureTooLarge, Message: "file too large"}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return Failure{Kind: FailureAuth, Message: "authentication failed"}
	case resumed && (code == http.StatusNotFound || code == http.StatusGone):
		return Failure{Kind: FailureStaleRecord, Message: "upload no longer exists on the server"}
	case code >= 500:
		return Failure{Kind: FailureServer, Message: "server error"}
	default:
		return Failure{Kind: FailureGeneric, Message: err.Error()}
	}
}

// classifyCreate maps a record-creation error. Record creation never falls
// back to a transport attempt, so every outcome here is terminal.
func classifyCreate(err error) Failure {
	code, ok := httpStatus(err)
	if !ok {
		return Failure{Kind: FailureNetwork, Message: "network error"}
	}
	switch {
	case code == http.StatusNotFound:
		return Failure{Kind: FailureEndpointNotFound, Message: "endpoint not found"}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return Failure{Kind: FailureAuth, Message: "authentication failed"}
	case code >= 500:
		return Failure{Kind: FailureServer, Message: "server error"}
	default:
		return Failure{Kind: FailureRecordCreate, Message: err.Error()}
	}
}
