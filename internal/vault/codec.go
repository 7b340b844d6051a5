// Package vault encrypts backup snapshots with a key derived from a user
// secret.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters.
const (
	Iterations = 100_000
	KeySize    = 32
	SaltSize   = 16
	IVSize     = 16
)

// Codec errors.
var (
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
	ErrDecryption         = errors.New("decryption failed")
	ErrEmptySecret        = errors.New("encryption secret cannot be empty")
)

// Codec encrypts and decrypts payloads into versioned envelopes.
type Codec struct {
	random  io.Reader
	version int
}

// Option configures a Codec.
type Option func(*Codec)

// WithVersion selects the envelope version written by Encrypt.
func WithVersion(version int) Option {
	return func(c *Codec) {
		c.version = version
	}
}

// WithRandom replaces the source of salts and IVs.
func WithRandom(r io.Reader) Option {
	return func(c *Codec) {
		c.random = r
	}
}

// NewCodec returns a codec writing VersionGCM envelopes unless configured
// otherwise.
func NewCodec(opts ...Option) (*Codec, error) {
	c := &Codec{version: VersionGCM, random: rand.Reader}
	for _, opt := range opts {
		opt(c)
	}
	if c.version != VersionCBC && c.version != VersionGCM {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, c.version)
	}
	return c, nil
}

// Version returns the envelope version Encrypt produces.
func (c *Codec) Version() int {
	return c.version
}

// Encrypt seals plaintext under a key derived from secret. Every call uses a
// fresh salt and IV.
func (c *Codec) Encrypt(plaintext []byte, secret string) (Envelope, error) {
	if secret == "" {
		return Envelope{}, ErrEmptySecret
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(c.random, salt); err != nil {
		return Envelope{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(c.random, iv); err != nil {
		return Envelope{}, fmt.Errorf("failed to generate iv: %w", err)
	}

	block, err := aes.NewCipher(DeriveKey(secret, salt))
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to create cipher: %w", err)
	}

	var cipherText []byte
	switch c.version {
	case VersionCBC:
		padded := pkcs7Pad(plaintext, block.BlockSize())
		cipherText = make([]byte, len(padded))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(cipherText, padded)
	case VersionGCM:
		aead, gcmErr := cipher.NewGCMWithNonceSize(block, IVSize)
		if gcmErr != nil {
			return Envelope{}, fmt.Errorf("failed to create gcm: %w", gcmErr)
		}
		cipherText = aead.Seal(nil, iv, plaintext, nil)
	default:
		return Envelope{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, c.version)
	}

	return Envelope{
		Version:    c.version,
		CipherText: cipherText,
		IV:         iv,
		Salt:       salt,
	}, nil
}

// Decrypt opens an envelope of any supported version. A wrong secret or a
// corrupted payload yields ErrDecryption; an unknown version yields
// ErrUnsupportedVersion.
func (c *Codec) Decrypt(env Envelope, secret string) ([]byte, error) {
	if env.Version != VersionCBC && env.Version != VersionGCM {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if len(env.IV) != IVSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrDecryption, IVSize, len(env.IV))
	}

	block, err := aes.NewCipher(DeriveKey(secret, env.Salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	var plaintext []byte
	if env.Version == VersionCBC {
		plaintext, err = openCBC(block, env)
	} else {
		plaintext, err = openGCM(block, env)
	}
	if err != nil {
		return nil, err
	}

	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecryption)
	}
	return plaintext, nil
}

// DeriveKey stretches secret into an AES-256 key.
func DeriveKey(secret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(secret), salt, Iterations, KeySize, sha256.New)
}

func openCBC(block cipher.Block, env Envelope) ([]byte, error) {
	size := block.BlockSize()
	if len(env.CipherText) == 0 || len(env.CipherText)%size != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrDecryption)
	}

	plaintext := make([]byte, len(env.CipherText))
	cipher.NewCBCDecrypter(block, env.IV).CryptBlocks(plaintext, env.CipherText)

	unpadded, err := pkcs7Unpad(plaintext, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return unpadded, nil
}

func openGCM(block cipher.Block, env Envelope) ([]byte, error) {
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	plaintext, err := aead.Open(nil, env.IV, env.CipherText, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plaintext, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty block")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
