package upstream

import (
	"fmt"

	"github.com/marketlens/marketlens/internal/apperrors"
)

// classifyStatus maps an HTTP status code to an apperrors.Kind, deciding
// retry eligibility per §4.2: network errors and 429/5xx retry, every
// other 4xx fails fast.
func classifyStatus(statusCode int, body []byte) error {
	msg := fmt.Sprintf("upstream returned status %d", statusCode)
	details := map[string]interface{}{"status_code": statusCode}
	if len(body) > 0 {
		details["body"] = apperrors.Truncate(string(body), 512)
	}

	switch {
	case statusCode == 429:
		return apperrors.New(apperrors.KindUpstreamRateLimit, msg).WithDetail("status_code", statusCode)
	case statusCode >= 500:
		return apperrors.New(apperrors.KindUpstreamServer, msg).WithDetail("status_code", statusCode)
	case statusCode >= 400:
		return apperrors.New(apperrors.KindUpstreamClient, msg).WithDetail("status_code", statusCode)
	default:
		return nil
	}
}
