package keyexec

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	vault "github.com/hashicorp/vault/api"
	"golang.org/x/crypto/hkdf"
)

// KMSProvider wraps delegate key material. The associated data binds a
// ciphertext to the key it belongs to; decrypting with different associated
// data fails.
type KMSProvider interface {
	Encrypt(ctx context.Context, plaintext, associatedData []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext, associatedData []byte) ([]byte, error)

	// Provider returns the provider name stored next to each ciphertext
	Provider() string
}

// KMSProviderType represents supported KMS providers
type KMSProviderType string

const (
	KMSProviderLocal  KMSProviderType = "local"
	KMSProviderAWSKMS KMSProviderType = "aws-kms"
	KMSProviderVault  KMSProviderType = "vault"
)

// localKeyInfo separates keys derived for delegate storage from any other use
// of the same master key
const localKeyInfo = "webconnect/delegate-key/v1"

// KMSConfig contains configuration for KMS providers
type KMSConfig struct {
	Provider string

	LocalMasterKeyHex string

	AWSKMSKeyID  string
	AWSKMSRegion string

	VaultAddress    string
	VaultToken      string
	VaultTransitKey string
}

// LocalKMSProvider encrypts with AES-256-GCM under a key derived from a local
// master key with HKDF-SHA256
type LocalKMSProvider struct {
	aead cipher.AEAD
}

// NewLocalKMSProvider creates a local provider. The master key is hex encoded
// and must hold at least 16 bytes.
func NewLocalKMSProvider(masterKeyHex string) (*LocalKMSProvider, error) {
	if masterKeyHex == "" {
		return nil, fmt.Errorf("master key is required for local KMS provider")
	}
	master, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master key must be hex encoded: %w", err)
	}
	if len(master) < 16 {
		return nil, fmt.Errorf("master key must be at least 16 bytes, got %d", len(master))
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(localKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &LocalKMSProvider{aead: aead}, nil
}

// Encrypt returns nonce || ciphertext
func (p *LocalKMSProvider) Encrypt(ctx context.Context, plaintext, associatedData []byte) ([]byte, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return p.aead.Seal(nonce, nonce, plaintext, associatedData), nil
}

func (p *LocalKMSProvider) Decrypt(ctx context.Context, ciphertext, associatedData []byte) ([]byte, error) {
	nonceSize := p.aead.NonceSize()
	if len(ciphertext) < nonceSize+p.aead.Overhead() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	plaintext, err := p.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], associatedData)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func (p *LocalKMSProvider) Provider() string {
	return string(KMSProviderLocal)
}

// AWSKMSProvider encrypts with an AWS KMS key. Associated data is passed as
// the encryption context.
type AWSKMSProvider struct {
	keyID  string
	client *kms.Client
}

// NewAWSKMSProvider creates an AWS KMS provider using the default credential chain
func NewAWSKMSProvider(ctx context.Context, keyID, region string) (*AWSKMSProvider, error) {
	if keyID == "" {
		return nil, fmt.Errorf("AWS KMS key ID is required")
	}
	if region == "" {
		return nil, fmt.Errorf("AWS region is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSKMSProvider{
		keyID:  keyID,
		client: kms.NewFromConfig(cfg),
	}, nil
}

func (p *AWSKMSProvider) Encrypt(ctx context.Context, plaintext, associatedData []byte) ([]byte, error) {
	output, err := p.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:             aws.String(p.keyID),
		Plaintext:         plaintext,
		EncryptionContext: encryptionContext(associatedData),
	})
	if err != nil {
		return nil, fmt.Errorf("aws kms encrypt failed: %w", err)
	}
	return output.CiphertextBlob, nil
}

func (p *AWSKMSProvider) Decrypt(ctx context.Context, ciphertext, associatedData []byte) ([]byte, error) {
	output, err := p.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:             aws.String(p.keyID),
		CiphertextBlob:    ciphertext,
		EncryptionContext: encryptionContext(associatedData),
	})
	if err != nil {
		return nil, fmt.Errorf("aws kms decrypt failed: %w", err)
	}
	return output.Plaintext, nil
}

func (p *AWSKMSProvider) Provider() string {
	return string(KMSProviderAWSKMS)
}

func encryptionContext(associatedData []byte) map[string]string {
	if len(associatedData) == 0 {
		return nil
	}
	return map[string]string{"key": hex.EncodeToString(associatedData)}
}

// VaultProvider encrypts with a Vault Transit key. The transit key must be
// an AEAD type for associated data to be authenticated.
type VaultProvider struct {
	transitKey string
	client     *vault.Client
}

// NewVaultProvider creates a Vault Transit provider
func NewVaultProvider(address, token, transitKey string) (*VaultProvider, error) {
	if address == "" {
		return nil, fmt.Errorf("vault address is required")
	}
	if token == "" {
		return nil, fmt.Errorf("vault token is required")
	}
	if transitKey == "" {
		return nil, fmt.Errorf("vault transit key name is required")
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(token)

	return &VaultProvider{
		transitKey: transitKey,
		client:     client,
	}, nil
}

// Encrypt returns the vault:v1:... ciphertext as bytes
func (p *VaultProvider) Encrypt(ctx context.Context, plaintext, associatedData []byte) ([]byte, error) {
	body := map[string]interface{}{
		"plaintext": base64.StdEncoding.EncodeToString(plaintext),
	}
	if len(associatedData) > 0 {
		body["associated_data"] = base64.StdEncoding.EncodeToString(associatedData)
	}

	secret, err := p.client.Logical().WriteWithContext(ctx, "transit/encrypt/"+p.transitKey, body)
	if err != nil {
		return nil, fmt.Errorf("vault transit encrypt failed: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("vault transit encrypt returned empty response")
	}

	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok {
		return nil, fmt.Errorf("vault transit encrypt: ciphertext not found in response")
	}
	return []byte(ciphertext), nil
}

func (p *VaultProvider) Decrypt(ctx context.Context, ciphertext, associatedData []byte) ([]byte, error) {
	body := map[string]interface{}{
		"ciphertext": string(ciphertext),
	}
	if len(associatedData) > 0 {
		body["associated_data"] = base64.StdEncoding.EncodeToString(associatedData)
	}

	secret, err := p.client.Logical().WriteWithContext(ctx, "transit/decrypt/"+p.transitKey, body)
	if err != nil {
		return nil, fmt.Errorf("vault transit decrypt failed: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("vault transit decrypt returned empty response")
	}

	plaintextB64, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, fmt.Errorf("vault transit decrypt: plaintext not found in response")
	}
	plaintext, err := base64.StdEncoding.DecodeString(plaintextB64)
	if err != nil {
		return nil, fmt.Errorf("vault transit decrypt: failed to decode plaintext: %w", err)
	}
	return plaintext, nil
}

func (p *VaultProvider) Provider() string {
	return string(KMSProviderVault)
}

// NewKMSProvider creates a KMSProvider based on the configuration
func NewKMSProvider(ctx context.Context, cfg *KMSConfig) (KMSProvider, error) {
	provider := KMSProviderType(cfg.Provider)

	switch provider {
	case KMSProviderLocal, "":
		return NewLocalKMSProvider(cfg.LocalMasterKeyHex)
	case KMSProviderAWSKMS:
		return NewAWSKMSProvider(ctx, cfg.AWSKMSKeyID, cfg.AWSKMSRegion)
	case KMSProviderVault:
		return NewVaultProvider(cfg.VaultAddress, cfg.VaultToken, cfg.VaultTransitKey)
	default:
		return nil, fmt.Errorf("unsupported KMS provider: %s (supported: %s, %s, %s)",
			provider, KMSProviderLocal, KMSProviderAWSKMS, KMSProviderVault)
	}
}

var (
	_ KMSProvider = (*LocalKMSProvider)(nil)
	_ KMSProvider = (*AWSKMSProvider)(nil)
	_ KMSProvider = (*VaultProvider)(nil)
)
