// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const licenseKeyPrefix = "AG"

var licenseKeyPattern = regexp.MustCompile(`^AG-[0-9A-F]{8}-[0-9A-F]{8}-[0-9A-F]{8}$`)

func GenerateRandomString(length int) (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

// HashPayload is the tamper-evidence hash recorded at write time and
// recomputed at verify time.
func HashPayload(payload string) string {
	hasher := sha256.New()
	hasher.Write([]byte(payload))
	return hex.EncodeToString(hasher.Sum(nil))
}

// GenerateLicenseKey derives a stakeholder credential from identity and
// key nonce. Regeneration bumps the nonce, so the prior key can never be
// reproduced. Format: AG-XXXXXXXX-XXXXXXXX-XXXXXXXX (hex groups).
func GenerateLicenseKey(id uuid.UUID, nonce int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", id.String(), nonce)))
	raw := strings.ToUpper(hex.EncodeToString(sum[:12]))
	return fmt.Sprintf("%s-%s-%s-%s", licenseKeyPrefix, raw[0:8], raw[8:16], raw[16:24])
}

// ValidLicenseKeyFormat checks the shape of a key without consulting the
// directory.
func ValidLicenseKeyFormat(key string) bool {
	return licenseKeyPattern.MatchString(key)
}

// GenerateBatchNumber builds a globally unique batch reference. The
// random suffix keeps two batches created in the same second distinct.
func GenerateBatchNumber() (string, error) {
	suffix, err := GenerateRandomString(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("BATCH-%d-%s", time.Now().Unix(), suffix), nil
}

// GenerateTrackingNumber builds a unique shipment tracking reference.
func GenerateTrackingNumber() (string, error) {
	suffix, err := GenerateRandomString(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SHIP-%d-%s", time.Now().Unix(), suffix), nil
}
