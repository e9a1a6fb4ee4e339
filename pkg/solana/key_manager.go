package solana

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
)

// DefaultKeystoreDir is where encrypted wallet entries are written.
const DefaultKeystoreDir = "configs/keystore"

var ErrEmptyPrivateKey = errors.New("private key is empty")

// KeyStoreEntry is the on-disk form of an encrypted wallet.
type KeyStoreEntry struct {
	Address      string `json:"address"`
	EncryptedKey string `json:"encrypted_key"`
	Version      int    `json:"version"`
}

// KeyManager generates buyer wallets and reads or writes them in a keystore directory.
type KeyManager struct {
	keystoreDir string
}

// NewKeyManager returns a manager rooted at dir, or DefaultKeystoreDir when dir is empty.
func NewKeyManager(dir string) *KeyManager {
	if dir == "" {
		dir = DefaultKeystoreDir
	}
	return &KeyManager{keystoreDir: dir}
}

// GenerateKeyPair creates a fresh ed25519 wallet.
func (km *KeyManager) GenerateKeyPair() (*types.Account, error) {
	account := types.NewAccount()
	return &account, nil
}

// EncryptPrivateKey seals a secret key with AES-256-GCM. The nonce is prepended to the ciphertext.
func (km *KeyManager) EncryptPrivateKey(privateKey []byte, password string) (string, error) {
	gcm, err := newGCM(password)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, privateKey, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptPrivateKey reverses EncryptPrivateKey.
func (km *KeyManager) DecryptPrivateKey(encryptedKey string, password string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	gcm, err := newGCM(password)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// SaveKeyStoreEntry encrypts the account's secret key and writes <address>.json.
// It returns the path of the written file.
func (km *KeyManager) SaveKeyStoreEntry(account *types.Account, password string) (string, error) {
	encrypted, err := km.EncryptPrivateKey(account.PrivateKey, password)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt private key: %w", err)
	}

	address := account.PublicKey.ToBase58()
	data, err := json.MarshalIndent(KeyStoreEntry{
		Address:      address,
		EncryptedKey: encrypted,
		Version:      1,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal keystore entry: %w", err)
	}

	if err := os.MkdirAll(km.keystoreDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create keystore directory: %w", err)
	}

	path := filepath.Join(km.keystoreDir, address+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write keystore entry: %w", err)
	}
	return path, nil
}

// LoadKeyStoreEntry reads and decrypts the entry stored for address.
func (km *KeyManager) LoadKeyStoreEntry(address string, password string) (*types.Account, error) {
	data, err := os.ReadFile(filepath.Join(km.keystoreDir, address+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore entry: %w", err)
	}

	var entry KeyStoreEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keystore entry: %w", err)
	}
	if entry.Address != address {
		return nil, fmt.Errorf("address mismatch: expected %s, got %s", address, entry.Address)
	}

	secret, err := km.DecryptPrivateKey(entry.EncryptedKey, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt private key: %w", err)
	}

	account, err := types.AccountFromBytes(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create account from private key: %w", err)
	}
	return &account, nil
}

// ParsePrivateKey accepts a secret key either as a JSON byte array
// ("[12,34,...]", the solana CLI format) or as a base58 string.
func ParsePrivateKey(raw string) (*types.Account, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyPrivateKey
	}

	var secret []byte
	if strings.HasPrefix(raw, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(raw), &ints); err != nil {
			return nil, fmt.Errorf("invalid JSON private key: %w", err)
		}
		secret = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("invalid byte %d at index %d", v, i)
			}
			secret[i] = byte(v)
		}
	} else {
		decoded, err := base58.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid base58 private key: %w", err)
		}
		secret = decoded
	}

	account, err := types.AccountFromBytes(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create account from private key: %w", err)
	}
	return &account, nil
}

// BuyerSource says where the buyer wallet comes from. PrivateKey wins over the keystore.
type BuyerSource struct {
	PrivateKey       string
	KeystoreDir      string
	KeystoreAddress  string
	KeystorePassword string
}

// LoadBuyer resolves the buyer wallet. It returns nil, nil when neither a
// private key nor a keystore address is configured.
func LoadBuyer(src BuyerSource) (*types.Account, error) {
	if strings.TrimSpace(src.PrivateKey) != "" {
		return ParsePrivateKey(src.PrivateKey)
	}
	if src.KeystoreAddress == "" {
		return nil, nil
	}
	account, err := NewKeyManager(src.KeystoreDir).LoadKeyStoreEntry(src.KeystoreAddress, src.KeystorePassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load buyer %s from keystore: %w", src.KeystoreAddress, err)
	}
	return account, nil
}

// SecretKeyJSON renders a secret key as the JSON byte array used by the solana CLI.
func SecretKeyJSON(privateKey []byte) string {
	ints := make([]int, len(privateKey))
	for i, b := range privateKey {
		ints[i] = int(b)
	}
	out, _ := json.Marshal(ints)
	return string(out)
}

// SecretKeyBase58 renders a secret key as base58, the format most wallets import.
func SecretKeyBase58(privateKey []byte) string {
	return base58.Encode(privateKey)
}

func newGCM(password string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(password))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
