package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// rejectFloor pads every 401 so a wrong key and a missing one take the same time.
const rejectFloor = 50 * time.Millisecond

// ErrInvalidKey is returned for a key that matches no configured key.
var ErrInvalidKey = errors.New("invalid api key")

// KeyValidator checks a service API key.
type KeyValidator interface {
	ValidateKey(ctx context.Context, apiKey string) error
}

// StaticKeys accepts any of a fixed set of keys. Several keys let one be
// rotated out while callers still hold the other.
type StaticKeys []string

// ValidateKey compares apiKey against every key without short-circuiting.
func (k StaticKeys) ValidateKey(_ context.Context, apiKey string) error {
	if apiKey == "" {
		return ErrInvalidKey
	}

	match := 0
	for _, key := range k {
		match |= subtle.ConstantTimeCompare([]byte(key), []byte(apiKey))
	}

	if match != 1 {
		return ErrInvalidKey
	}

	return nil
}

// BearerToken returns the credentials of a "Bearer" Authorization header.
// The scheme name is case-insensitive.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}

// keyFingerprint identifies a presented key in logs without revealing it.
func keyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:4])
}

// Authenticate requires a valid service key. guard may be nil; when set,
// failures count toward an IP lockout and a success clears the record.
func Authenticate(keys KeyValidator, guard *BruteForceGuard, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()

		apiKey := BearerToken(c.GetHeader("Authorization"))
		if apiKey == "" {
			reject(c, started, "missing or invalid authorization header")
			return
		}

		if err := keys.ValidateKey(c.Request.Context(), apiKey); err != nil {
			log.WithFields(logrus.Fields{
				"client_ip":   c.ClientIP(),
				"route":       c.FullPath(),
				"user_agent":  c.Request.UserAgent(),
				"request_id":  c.GetString(RequestIDKey),
				"fingerprint": keyFingerprint(apiKey),
			}).Warn("rejected api key")

			if guard != nil {
				guard.RecordFailure(c.ClientIP())
			}

			reject(c, started, "invalid api key")
			return
		}

		if guard != nil {
			guard.Reset(c.ClientIP())
		}

		c.Set(APIKeyKey, apiKey)
		c.Next()
	}
}

func reject(c *gin.Context, started time.Time, msg string) {
	time.Sleep(rejectFloor - time.Since(started))
	respondError(c, http.StatusUnauthorized, "unauthorized", msg)
}
