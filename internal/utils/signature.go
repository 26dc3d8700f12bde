package utils

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"strings"
)

// TwilioSignature computes the X-Twilio-Signature for a webhook: HMAC-SHA1
// over the full request URL followed by each POST parameter name and value,
// sorted by name, base64 encoded.
func TwilioSignature(authToken, fullURL string, params map[string][]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyTwilioSignature validates a Twilio webhook signature.
func VerifyTwilioSignature(authToken, fullURL string, params map[string][]string, signature string) bool {
	expected := TwilioSignature(authToken, fullURL, params)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// SecretsEqual compares shared secrets in constant time.
func SecretsEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
