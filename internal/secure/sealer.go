// Package secure шифрует банковские реквизиты перед записью в базу.
package secure

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/ignatzorin/creator-settlement/internal/models"
)

const nonceSize = 24

// ErrDecrypt - шифротекст повреждён или ключ не подходит.
var ErrDecrypt = errors.New("secure: не удалось расшифровать данные")

// Sealer шифрует данные симметричным ключом (XSalsa20-Poly1305).
type Sealer struct {
	key [32]byte
}

// NewSealer создаёт шифратор из 32-байтного ключа.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("secure: ключ должен быть 32 байта, получено %d", len(key))
	}
	s := &Sealer{}
	copy(s.key[:], key)
	return s, nil
}

// Seal возвращает nonce||box.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("secure: nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

// Open расшифровывает результат Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	out, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrDecrypt
	}
	return out, nil
}

// SealBankDetails сериализует и шифрует реквизиты.
func (s *Sealer) SealBankDetails(d models.BankDetails) ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("secure: marshal bank details: %w", err)
	}
	return s.Seal(raw)
}

// OpenBankDetails - обратная операция к SealBankDetails.
func (s *Sealer) OpenBankDetails(sealed []byte) (*models.BankDetails, error) {
	raw, err := s.Open(sealed)
	if err != nil {
		return nil, err
	}
	var d models.BankDetails
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("secure: unmarshal bank details: %w", err)
	}
	return &d, nil
}
