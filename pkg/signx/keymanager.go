// Package signx implements the signing primitives behind bearer tokens: an
// ECDSA P-256 key pair with persistent storage and a length-prefixed
// signature framing format.
package signx

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidSignature reports a failed verification, truncated input or
	// malformed framing. Callers must not distinguish between these cases.
	ErrInvalidSignature = errors.New("signx: invalid signature")

	// ErrNoKeyPair is returned by a KeyStore when no pair has been persisted.
	ErrNoKeyPair = errors.New("signx: no key pair stored")
)

// maxSignatureLength is the framing ceiling imposed by the one-byte length
// prefix. DER-encoded P-256 signatures top out around 72 bytes, so the guard
// should never trip, but the wire format cannot carry a longer signature.
const maxSignatureLength = 255

// KeyPairRecord holds the standard encoded forms of a key pair: PKIX DER for
// the public key and PKCS#8 DER for the private key.
type KeyPairRecord struct {
	PublicKey  []byte
	PrivateKey []byte
}

// KeyStore persists the deployment's single key pair. SaveKeyPair must be
// first-writer-wins so concurrent first-time initializers converge on one
// pair; LoadKeyPair returns ErrNoKeyPair when nothing is stored yet.
type KeyStore interface {
	LoadKeyPair(ctx context.Context) (KeyPairRecord, error)
	SaveKeyPair(ctx context.Context, pair KeyPairRecord) error
}

// KeyManager owns the process-wide ECDSA P-256 key pair. The pair is loaded
// or generated lazily on first use behind a mutex, then cached for the
// process lifetime. There is no rotation: one active pair per deployment.
type KeyManager struct {
	store KeyStore

	mu      sync.Mutex
	private *ecdsa.PrivateKey
	public  *ecdsa.PublicKey
}

func NewKeyManager(store KeyStore) *KeyManager {
	return &KeyManager{store: store}
}

// Sign produces an ECDSA signature over the SHA-256 digest of data and frames
// it as [1-byte signature length][signature][data].
func (m *KeyManager) Sign(ctx context.Context, data []byte) ([]byte, error) {
	if err := m.ensureKeys(ctx); err != nil {
		return nil, err
	}

	digest := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, m.private, digest[:])
	if err != nil {
		return nil, fmt.Errorf("signx: sign: %w", err)
	}
	if len(sig) > maxSignatureLength {
		return nil, fmt.Errorf("signx: signature length %d exceeds framing limit", len(sig))
	}

	framed := make([]byte, 0, 1+len(sig)+len(data))
	framed = append(framed, byte(len(sig)))
	framed = append(framed, sig...)
	framed = append(framed, data...)
	return framed, nil
}

// Verify checks the framed signature against the public key and returns the
// original data. Any mismatch, truncation or malformed framing yields
// ErrInvalidSignature.
func (m *KeyManager) Verify(ctx context.Context, framed []byte) ([]byte, error) {
	if err := m.ensureKeys(ctx); err != nil {
		return nil, err
	}

	if len(framed) < 2 {
		return nil, ErrInvalidSignature
	}
	sigLen := int(framed[0])
	if sigLen == 0 || 1+sigLen > len(framed) {
		return nil, ErrInvalidSignature
	}
	sig := framed[1 : 1+sigLen]
	data := framed[1+sigLen:]

	digest := sha256.Sum256(data)
	if !ecdsa.VerifyASN1(m.public, digest[:], sig) {
		return nil, ErrInvalidSignature
	}
	return data, nil
}

// ensureKeys loads the persisted pair, generating and persisting a fresh one
// the first time any process needs it. The mutex collapses concurrent
// first-callers within the process; the store's first-writer-wins save plus
// the reload afterwards resolves races between processes.
func (m *KeyManager) ensureKeys(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.private != nil {
		return nil
	}

	record, err := m.store.LoadKeyPair(ctx)
	if errors.Is(err, ErrNoKeyPair) {
		generated, genErr := generateKeyPair()
		if genErr != nil {
			return genErr
		}
		if saveErr := m.store.SaveKeyPair(ctx, generated); saveErr != nil {
			return fmt.Errorf("signx: persist key pair: %w", saveErr)
		}
		// Re-read rather than trusting our own copy: another process may
		// have won the save, and every instance must use the same pair.
		record, err = m.store.LoadKeyPair(ctx)
	}
	if err != nil {
		return fmt.Errorf("signx: load key pair: %w", err)
	}

	private, public, err := parseKeyPair(record)
	if err != nil {
		return err
	}
	m.private = private
	m.public = public
	return nil
}

func generateKeyPair() (KeyPairRecord, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return KeyPairRecord{}, fmt.Errorf("signx: generate key pair: %w", err)
	}
	privateDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return KeyPairRecord{}, fmt.Errorf("signx: encode private key: %w", err)
	}
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return KeyPairRecord{}, fmt.Errorf("signx: encode public key: %w", err)
	}
	return KeyPairRecord{PublicKey: publicDER, PrivateKey: privateDER}, nil
}

func parseKeyPair(record KeyPairRecord) (*ecdsa.PrivateKey, *ecdsa.PublicKey, error) {
	parsedPrivate, err := x509.ParsePKCS8PrivateKey(record.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("signx: parse private key: %w", err)
	}
	private, ok := parsedPrivate.(*ecdsa.PrivateKey)
	if !ok {
		return nil, nil, errors.New("signx: stored private key is not ECDSA")
	}

	parsedPublic, err := x509.ParsePKIXPublicKey(record.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("signx: parse public key: %w", err)
	}
	public, ok := parsedPublic.(*ecdsa.PublicKey)
	if !ok {
		return nil, nil, errors.New("signx: stored public key is not ECDSA")
	}

	return private, public, nil
}
