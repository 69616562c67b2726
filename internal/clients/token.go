package clients

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const voiceCloneAuthPrefix = "VOICE_CLONE_AUTH-"

// MintVoiceToken builds the short-lived HMAC bearer token voice-svc
// expects: HMAC-SHA256(secret, utf8(unix_seconds)) hex-encoded, joined
// with the seconds as "<hex>.<unix_seconds>", base64url-encoded, and
// prefixed with the literal VOICE_CLONE_AUTH-.
func MintVoiceToken(secret string, unixSeconds int64) string {
	sig := sign(secret, unixSeconds)
	payload := fmt.Sprintf("%s.%d", sig, unixSeconds)
	return voiceCloneAuthPrefix + base64.URLEncoding.EncodeToString([]byte(payload))
}

// VerifyVoiceToken reverses MintVoiceToken, returning the embedded unix
// timestamp and hex signature, and confirming the signature matches the
// given secret.
func VerifyVoiceToken(secret, token string) (unixSeconds int64, sig string, err error) {
	if !strings.HasPrefix(token, voiceCloneAuthPrefix) {
		return 0, "", errors.New("clients: missing VOICE_CLONE_AUTH- prefix")
	}
	encoded := strings.TrimPrefix(token, voiceCloneAuthPrefix)
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return 0, "", fmt.Errorf("clients: decode token: %w", err)
	}
	parts := strings.SplitN(string(raw), ".", 2)
	if len(parts) != 2 {
		return 0, "", errors.New("clients: malformed token payload")
	}
	sig = parts[0]
	unixSeconds, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("clients: parse timestamp: %w", err)
	}
	expected := sign(secret, unixSeconds)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return unixSeconds, sig, errors.New("clients: signature mismatch")
	}
	return unixSeconds, sig, nil
}

func sign(secret string, unixSeconds int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(unixSeconds, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
