package secure

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/creator-settlement/internal/models"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(testKey(1))
	require.NoError(t, err)

	details := models.BankDetails{
		HolderName:    "Anna Petrova",
		BankName:      "Test Bank",
		AccountNumber: "40817810099910004312",
		RoutingNumber: "044525225",
	}
	sealed, err := s.SealBankDetails(details)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), details.AccountNumber)

	opened, err := s.OpenBankDetails(sealed)
	require.NoError(t, err)
	assert.Equal(t, details, *opened)
}

func TestSealer_WrongKeyOrTampered(t *testing.T) {
	s1, _ := NewSealer(testKey(1))
	s2, _ := NewSealer(testKey(2))

	sealed, err := s1.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = s2.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)

	sealed[len(sealed)-1] ^= 0xff
	_, err = s1.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = s1.Open([]byte("short"))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewSealer_KeyLength(t *testing.T) {
	_, err := NewSealer([]byte("short"))
	assert.Error(t, err)
}
