// Package decrypt recovers the sensor payload from a frame.
//
// The transform is the one the deployed capture tooling uses: the FRMPayload
// is zero padded to whole 16 byte blocks and every block is decrypted on its
// own with the device key, with no IV and no chaining. It is not LoRaWAN
// application security (no frame counter keystream, no MIC check) and must
// not be mistaken for it.
package decrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

const (
	BlockSize = 16
	KeySize   = 16
	micLen    = 4
)

var (
	ErrDecryptUnavailable = errors.New("no cipher backend available")
	ErrDecrypt            = errors.New("decrypt failed")
)

// BlockCipherFunc builds a block cipher for a key.
type BlockCipherFunc func(key []byte) (cipher.Block, error)

// Decryptor applies the per-block transform using NewCipher. A zero
// Decryptor has no backend.
type Decryptor struct {
	NewCipher BlockCipherFunc
}

// New returns a Decryptor backed by AES-128.
func New() Decryptor {
	return Decryptor{NewCipher: aes.NewCipher}
}

// Decrypt takes the bytes between offset and the trailing 4 byte MIC of raw
// and decrypts them. The result length is the padded length.
func (d Decryptor) Decrypt(raw []byte, offset int, key []byte) ([]byte, error) {
	if offset < 0 || offset > len(raw)-micLen {
		return d.DecryptPayload(nil, key)
	}
	return d.DecryptPayload(raw[offset:len(raw)-micLen], key)
}

// DecryptPayload decrypts an already extracted FRMPayload.
func (d Decryptor) DecryptPayload(payload, key []byte) ([]byte, error) {
	if d.NewCipher == nil {
		return nil, ErrDecryptUnavailable
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key is %d bytes, need %d", ErrDecrypt, len(key), KeySize)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecrypt)
	}
	block, err := d.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if block.BlockSize() != BlockSize {
		return nil, fmt.Errorf("%w: block size %d", ErrDecrypt, block.BlockSize())
	}

	buf := make([]byte, PaddedLen(len(payload)))
	copy(buf, payload)
	for i := 0; i < len(buf); i += BlockSize {
		block.Decrypt(buf[i:i+BlockSize], buf[i:i+BlockSize])
	}
	return buf, nil
}

// PaddedLen rounds n up to a whole number of blocks, never below one block.
func PaddedLen(n int) int {
	if n <= BlockSize {
		return BlockSize
	}
	return (n + BlockSize - 1) / BlockSize * BlockSize
}
