package crypto

import (
	stdcrypto "crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/packet"
)

// PGPManager holds the key pair used to encrypt customer identity numbers at
// rest, plus the HMAC key that produces the equality-lookup digest. The
// armored ciphertext goes in one column, the digest in another; lookups only
// ever touch the digest.
type PGPManager struct {
	entity  *openpgp.Entity
	hmacKey []byte
	keyPath string
}

// NewPGPManager loads the key from keyPath, generating and saving a new one
// on first run.
func NewPGPManager(keyPath string, hmacKey []byte) (*PGPManager, error) {
	if len(hmacKey) < 32 {
		return nil, errors.New("HMAC key must be at least 32 bytes")
	}

	manager := &PGPManager{keyPath: keyPath, hmacKey: hmacKey}
	if err := manager.init(); err != nil {
		return nil, fmt.Errorf("failed to initialize PGP: %w", err)
	}
	return manager, nil
}

func (m *PGPManager) init() error {
	if _, err := os.Stat(m.keyPath); err == nil {
		entity, err := m.loadKeyFromFile()
		if err != nil {
			return fmt.Errorf("failed to load PGP key: %w", err)
		}
		m.entity = entity
		return nil
	}
	return m.generateAndSaveKey()
}

func (m *PGPManager) generateAndSaveKey() error {
	config := &packet.Config{
		Rand:          rand.Reader,
		RSABits:       4096,
		DefaultHash:   stdcrypto.SHA256,
		DefaultCipher: packet.CipherAES256,
	}

	entity, err := openpgp.NewEntity("EMI Portal Server", "", "emi-portal@telepoint.local", config)
	if err != nil {
		return fmt.Errorf("failed to generate entity: %w", err)
	}

	for _, id := range entity.Identities {
		if err := id.SelfSignature.SignUserId(id.UserId.Id, entity.PrimaryKey, entity.PrivateKey, config); err != nil {
			return fmt.Errorf("failed to sign identity: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(m.keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	file, err := os.OpenFile(m.keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	defer file.Close()

	armorWriter, err := armor.Encode(file, openpgp.PrivateKeyType, nil)
	if err != nil {
		return fmt.Errorf("failed to create armor writer: %w", err)
	}

	if err := entity.SerializePrivate(armorWriter, config); err != nil {
		armorWriter.Close()
		return fmt.Errorf("failed to serialize private key: %w", err)
	}

	if err := armorWriter.Close(); err != nil {
		return fmt.Errorf("failed to close armor writer: %w", err)
	}

	m.entity = entity
	return nil
}

func (m *PGPManager) loadKeyFromFile() (*openpgp.Entity, error) {
	file, err := os.Open(m.keyPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	block, err := armor.Decode(file)
	if err != nil {
		return nil, err
	}
	if block.Type != openpgp.PrivateKeyType {
		return nil, errors.New("file is not a private key")
	}

	return openpgp.ReadEntity(packet.NewReader(block.Body))
}

// Encrypt returns the armored PGP ciphertext of data.
func (m *PGPManager) Encrypt(data string) (string, error) {
	buf := new(strings.Builder)

	armorWriter, err := armor.Encode(buf, "PGP MESSAGE", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create armor writer: %w", err)
	}

	config := &packet.Config{
		DefaultHash:            stdcrypto.SHA256,
		DefaultCipher:          packet.CipherAES256,
		DefaultCompressionAlgo: packet.CompressionZLIB,
	}

	plaintextWriter, err := openpgp.Encrypt(armorWriter, []*openpgp.Entity{m.entity}, nil, nil, config)
	if err != nil {
		armorWriter.Close()
		return "", fmt.Errorf("failed to create encryption writer: %w", err)
	}

	if _, err := plaintextWriter.Write([]byte(data)); err != nil {
		armorWriter.Close()
		return "", fmt.Errorf("failed to write plaintext: %w", err)
	}
	if err := plaintextWriter.Close(); err != nil {
		armorWriter.Close()
		return "", fmt.Errorf("failed to close plaintext writer: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close armor writer: %w", err)
	}

	return buf.String(), nil
}

// Decrypt reverses Encrypt.
func (m *PGPManager) Decrypt(encrypted string) (string, error) {
	block, err := armor.Decode(strings.NewReader(encrypted))
	if err != nil {
		return "", fmt.Errorf("failed to decode armor: %w", err)
	}

	md, err := openpgp.ReadMessage(block.Body, openpgp.EntityList{m.entity}, nil, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}

	plaintext, err := io.ReadAll(md.UnverifiedBody)
	if err != nil {
		return "", fmt.Errorf("failed to read decrypted data: %w", err)
	}

	return string(plaintext), nil
}

// Digest returns the hex HMAC-SHA256 of data. Deterministic, so strict
// equality lookups work against the stored column without decrypting rows.
func (m *PGPManager) Digest(data string) string {
	h := hmac.New(sha256.New, m.hmacKey)
	h.Write([]byte(data))
	return fmt.Sprintf("%x", h.Sum(nil))
}
