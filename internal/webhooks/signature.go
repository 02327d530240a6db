package webhooks

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
)

// SignHMAC returns the lowercase hex HMAC-SHA256 of body under secret, as
// carried in the X-Signature header.
func SignHMAC(secret string, body []byte) string {
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write(body)
    return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC checks a hex signature over the raw body in constant time.
func VerifyHMAC(secret string, body []byte, provided string) bool {
    b, err := hex.DecodeString(provided)
    if err != nil {
        return false
    }
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write(body)
    return hmac.Equal(mac.Sum(nil), b)
}
