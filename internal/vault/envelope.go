package vault

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Envelope versions.
const (
	// VersionCBC is the legacy AES-256-CBC/PKCS7 scheme. It carries no
	// authentication tag; tampering is only caught when it breaks the padding
	// or empties the plaintext.
	VersionCBC = 1
	// VersionGCM is AES-256-GCM, the default for new envelopes.
	VersionGCM = 2
)

// Envelope is the typed form of one encrypted payload.
type Envelope struct {
	CipherText []byte
	IV         []byte
	Salt       []byte
	Version    int
}

type envelopeWire struct {
	CipherText string `json:"cipherText"`
	IV         string `json:"iv"`
	Salt       string `json:"salt"`
	Version    int    `json:"version"`
}

// MarshalJSON encodes the envelope with base64 fields.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeWire{
		Version:    e.Version,
		CipherText: base64.StdEncoding.EncodeToString(e.CipherText),
		IV:         base64.StdEncoding.EncodeToString(e.IV),
		Salt:       base64.StdEncoding.EncodeToString(e.Salt),
	})
}

// UnmarshalJSON decodes the base64 wire form.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w envelopeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	cipherText, err := base64.StdEncoding.DecodeString(w.CipherText)
	if err != nil {
		return fmt.Errorf("invalid cipherText: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(w.IV)
	if err != nil {
		return fmt.Errorf("invalid iv: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(w.Salt)
	if err != nil {
		return fmt.Errorf("invalid salt: %w", err)
	}

	*e = Envelope{Version: w.Version, CipherText: cipherText, IV: iv, Salt: salt}
	return nil
}

// MarshalEnvelope renders the envelope as its stored text.
func MarshalEnvelope(e Envelope) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to encode envelope: %w", err)
	}
	return string(data), nil
}

// UnmarshalEnvelope parses stored text into an envelope. Undecodable text is
// reported as ErrDecryption since the payload cannot be recovered either way.
func UnmarshalEnvelope(text string) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(text), &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: malformed envelope: %v", ErrDecryption, err)
	}
	return e, nil
}
