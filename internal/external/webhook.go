package external

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WebhookSignatureHeader carries "t=<unix>,te=<test sig>,li=<live sig>"
const WebhookSignatureHeader = "Paymongo-Signature"

// WebhookTolerance bounds the distance between the signed timestamp and now.
const WebhookTolerance = 5 * time.Minute

var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifyWebhookSignature checks the HMAC-SHA256 of "<t>.<body>" against the
// live or test signature in header, then rejects timestamps further than
// WebhookTolerance from now. An empty secret disables verification.
func VerifyWebhookSignature(header string, body []byte, secret string, now time.Time) error {
	if secret == "" {
		return nil
	}

	var timestamp, test, live string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "te":
			test = value
		case "li":
			live = value
		}
	}
	if timestamp == "" || (test == "" && live == "") {
		return ErrInvalidSignature
	}

	expected := SignWebhook(timestamp, body, secret)
	matched := false
	for _, candidate := range []string{live, test} {
		if candidate != "" && hmac.Equal([]byte(candidate), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp", ErrInvalidSignature)
	}
	skew := now.Sub(time.Unix(unix, 0))
	if skew > WebhookTolerance || skew < -WebhookTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}
	return nil
}

// SignWebhook returns the hex signature for timestamp and body.
func SignWebhook(timestamp string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
