package ai

import (
	"errors"
	"net/http"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
)

// IsQuotaError decides whether a gateway failure means the call budget or
// rate limit was exhausted, as opposed to a generic failure. Two tiers:
// typed provider errors first, then a text pattern fallback for providers
// that don't distinguish kinds. Kept in one place so the policy stays
// auditable and testable.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var ae *apierror.APIError
	if errors.As(err, &ae) {
		switch ae.GRPCStatus().Code() {
		case codes.ResourceExhausted, codes.PermissionDenied:
			return true
		}
		switch ae.HTTPCode() {
		case http.StatusTooManyRequests, http.StatusForbidden:
			return true
		}
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		if ge.Code == http.StatusTooManyRequests || ge.Code == http.StatusForbidden {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit")
}
