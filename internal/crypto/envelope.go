package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the stored form of a sealed secret: AES-GCM ciphertext plus
// the id of the master key that sealed it, so old secrets stay readable
// after a key rotation.
type Envelope struct {
	KeyID      string `json:"key_id"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type Keyring struct {
	currentKeyID string
	keys         map[string][]byte
}

func NewKeyring(currentKeyID string, keys map[string][]byte) (*Keyring, error) {
	if currentKeyID == "" {
		return nil, fmt.Errorf("current key id is empty")
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("keys map is empty")
	}
	if _, ok := keys[currentKeyID]; !ok {
		return nil, fmt.Errorf("current key id %q not found", currentKeyID)
	}
	for id, key := range keys {
		if len(key) != 32 {
			return nil, fmt.Errorf("key %q must be 32 bytes", id)
		}
	}
	cp := make(map[string][]byte, len(keys))
	for id, key := range keys {
		buf := make([]byte, len(key))
		copy(buf, key)
		cp[id] = buf
	}
	return &Keyring{currentKeyID: currentKeyID, keys: cp}, nil
}

func (k *Keyring) encrypt(plaintext []byte) (Envelope, error) {
	key := k.keys[k.currentKeyID]
	block, err := aes.NewCipher(key)
	if err != nil {
		return Envelope{}, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return Envelope{}, fmt.Errorf("new gcm: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, fmt.Errorf("nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return Envelope{
		KeyID:      k.currentKeyID,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

func (k *Keyring) decrypt(env Envelope) ([]byte, error) {
	key, ok := k.keys[env.KeyID]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", env.KeyID)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// SealString seals a secret with the current master key and returns the
// JSON envelope that goes into the store.
func (k *Keyring) SealString(value string) (string, error) {
	env, err := k.encrypt([]byte(value))
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(b), nil
}

func (k *Keyring) OpenString(raw string) (string, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return "", fmt.Errorf("unmarshal envelope: %w", err)
	}
	pt, err := k.decrypt(env)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// Reseal re-encrypts an envelope under the current key, used when rotating
// master keys over stored vault items.
func (k *Keyring) Reseal(raw string) (string, error) {
	plain, err := k.OpenString(raw)
	if err != nil {
		return "", err
	}
	return k.SealString(plain)
}

// Mask renders a secret for display: the first four characters plus a fixed
// tail, never the full value.
func Mask(plaintext string) string {
	trimmed := strings.TrimSpace(plaintext)
	if len(trimmed) <= 4 {
		return "****"
	}
	return trimmed[:4] + "****"
}
