package paymongo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyWebhookSignature checks the Paymongo-Signature header against the
// raw, unparsed request body. The header carries comma-separated key=value
// pairs: t (unix timestamp), te (test-mode HMAC) and li (live-mode HMAC).
// The signed string is "{t}.{rawBody}", HMAC-SHA256 keyed by the webhook
// secret and hex encoded. livemode selects which of te/li to compare.
//
// The timestamp is not checked against a replay window; replayed deliveries
// are rejected by the idempotency ledger instead.
func VerifyWebhookSignature(header string, rawBody []byte, secret string, livemode bool) bool {
	header = strings.TrimSpace(header)
	secret = strings.TrimSpace(secret)
	if header == "" || secret == "" {
		return false
	}

	var timestamp, sentSig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "te":
			if !livemode {
				sentSig = v
			}
		case "li":
			if livemode {
				sentSig = v
			}
		}
	}
	if timestamp == "" || sentSig == "" {
		return false
	}

	sent, err := hex.DecodeString(strings.ToLower(sentSig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	calc := mac.Sum(nil)

	// hmac.Equal requires equal-length inputs to stay constant time.
	if len(sent) != len(calc) {
		return false
	}
	return hmac.Equal(calc, sent)
}
