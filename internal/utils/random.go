package utils

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	letterBytes  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numberBytes  = "0123456789"
	alphanumeric = letterBytes + numberBytes
)

func GenerateRandomString(length int) string {
	return generateRandom(length, alphanumeric)
}

func generateRandom(length int, charset string) string {
	result := make([]byte, length)
	charsetLength := big.NewInt(int64(len(charset)))

	for i := range result {
		num, _ := rand.Int(rand.Reader, charsetLength)
		result[i] = charset[num.Int64()]
	}

	return string(result)
}

// GenerateAffiliateCode returns an 8 character uppercase code with the
// confusable characters (0, O, I, L) replaced.
func GenerateAffiliateCode() string {
	code := strings.ToUpper(GenerateRandomString(AffiliateCodeLength))

	code = strings.ReplaceAll(code, "0", "2")
	code = strings.ReplaceAll(code, "O", "3")
	code = strings.ReplaceAll(code, "I", "4")
	code = strings.ReplaceAll(code, "L", "5")

	return code
}

// GenerateFingerprint returns an opaque visitor fingerprint for click records.
func GenerateFingerprint() string {
	return uuid.NewString()
}

// GenerateIdempotencyKey returns a fresh ledger idempotency key. Callers that
// need stable keys (signup bonus, tier reward) build them from the referral id
// instead.
func GenerateIdempotencyKey() string {
	return uuid.NewString()
}
