// Package sas signs Shared Access Signature tokens for IoT Hub and DPS data
// plane calls.
package sas

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Validity is the fixed lifetime of a token.
const Validity = time.Hour

// Generate returns a token for resourceHost signed with the base64 encoded
// key. The skn clause is added only when policy is non-empty.
func Generate(resourceHost, key, policy string, now time.Time) (string, error) {
	signingKey, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("decoding signing key: %w", err)
	}

	resource := url.QueryEscape(resourceHost)
	expiry := strconv.FormatInt(expiresAt(now), 10)

	mac := hmac.New(sha256.New, signingKey)
	mac.Write([]byte(resource + "\n" + expiry))
	sig := url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	token := "SharedAccessSignature sr=" + resource + "&sig=" + sig + "&se=" + expiry
	if policy != "" {
		token += "&skn=" + policy
	}
	return token, nil
}

// GenerateNow is Generate at the current time.
func GenerateNow(resourceHost, key, policy string) (string, error) {
	return Generate(resourceHost, key, policy, time.Now())
}

// expiresAt rounds now up to the next whole second before adding Validity.
func expiresAt(now time.Time) int64 {
	ms := now.UnixMilli()
	return (ms+999)/1000 + int64(Validity/time.Second)
}
