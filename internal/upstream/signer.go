package upstream

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Signer attaches HMAC-SHA256 request signatures for authenticated
// endpoints (§4.2). The secret is URL-safe base64 encoded, matching the
// upstream exchange's documented signing scheme.
type Signer struct {
	Address    string
	APIKey     string
	Secret     string
	Passphrase string
}

// Sign computes the signature and sets every header the upstream expects:
// address, signature, timestamp, api-key, passphrase. path must exclude
// query parameters.
func (s Signer) Sign(req *http.Request, method, path string) error {
	secretBytes, err := base64.URLEncoding.DecodeString(s.Secret)
	if err != nil {
		// fall back to raw-secret mode for callers that configured the
		// secret without base64 encoding.
		secretBytes = []byte(s.Secret)
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	message := ts + method + path

	mac := hmac.New(sha256.New, secretBytes)
	if _, err := mac.Write([]byte(message)); err != nil {
		return fmt.Errorf("compute hmac: %w", err)
	}
	signature := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("address", s.Address)
	req.Header.Set("signature", signature)
	req.Header.Set("timestamp", ts)
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("passphrase", s.Passphrase)
	return nil
}
