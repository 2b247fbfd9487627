// internal/utils/crypto_test.go
package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHashPayloadIsDeterministic(t *testing.T) {
	first := HashPayload(`{"variety":"alphonso"}`)
	second := HashPayload(`{"variety":"alphonso"}`)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	assert.NotEqual(t, first, HashPayload(`{"variety":"alphonso "}`))
}

func TestGenerateLicenseKey(t *testing.T) {
	id := uuid.New()

	key := GenerateLicenseKey(id, 0)
	assert.True(t, ValidLicenseKeyFormat(key))

	// Same identity and nonce always yield the same key.
	assert.Equal(t, key, GenerateLicenseKey(id, 0))

	// Bumping the nonce yields a different key.
	assert.NotEqual(t, key, GenerateLicenseKey(id, 1))

	// Different identities never collide on the same nonce.
	assert.NotEqual(t, key, GenerateLicenseKey(uuid.New(), 0))
}

func TestValidLicenseKeyFormat(t *testing.T) {
	assert.True(t, ValidLicenseKeyFormat("AG-0123ABCD-4567EF01-89ABCDEF"))

	assert.False(t, ValidLicenseKeyFormat(""))
	assert.False(t, ValidLicenseKeyFormat("SC-00000000-00000000-00000000"))
	assert.False(t, ValidLicenseKeyFormat("AG-0123abcd-4567ef01-89abcdef")) // lowercase
	assert.False(t, ValidLicenseKeyFormat("AG-0123ABCD-4567EF01"))
	assert.False(t, ValidLicenseKeyFormat("AG-0123ABCD-4567EF01-89ABCDEF-EXTRA"))
}

func TestGenerateBatchNumber(t *testing.T) {
	number, err := GenerateBatchNumber()
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(number, "BATCH-"))

	other, err := GenerateBatchNumber()
	assert.NoError(t, err)
	assert.NotEqual(t, number, other)
}

func TestGenerateTrackingNumber(t *testing.T) {
	number, err := GenerateTrackingNumber()
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(number, "SHIP-"))
}
