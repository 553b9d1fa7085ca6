package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://coffee.example.com/"
	testAudience = "coffeeshop"
	testKeyID    = "test-key"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return privateKey
}

func keySetJSON(t *testing.T, keys map[string]*rsa.PublicKey) []byte {
	t.Helper()
	entries := make([]any, 0, len(keys))
	for keyID, publicKey := range keys {
		entries = append(entries, map[string]string{
			"kty": "RSA",
			"alg": "RS256",
			"kid": keyID,
			"use": "sig",
			"n":   encodeBigInt(publicKey.N),
			"e":   encodeBigInt(publicKey.E),
		})
	}
	document, err := json.Marshal(map[string]any{"keys": entries})
	if err != nil {
		t.Fatalf("failed to encode key set: %v", err)
	}
	return document
}

func signToken(t *testing.T, privateKey *rsa.PrivateKey, keyID string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if keyID != "" {
		token.Header["kid"] = keyID
	}
	signed, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func encodeBigInt(value interface{}) string {
	switch v := value.(type) {
	case *big.Int:
		return base64.RawURLEncoding.EncodeToString(v.Bytes())
	case int:
		return encodeBigInt(int64(v))
	case int64:
		return base64.RawURLEncoding.EncodeToString(big.NewInt(v).Bytes())
	default:
		return ""
	}
}

type staticKeyProvider struct {
	keys map[string]*rsa.PublicKey
	err  error
}

func (p staticKeyProvider) SigningKey(_ context.Context, keyID string) (*rsa.PublicKey, error) {
	if p.err != nil {
		return nil, p.err
	}
	key, ok := p.keys[keyID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

type memoryKeySetCache struct {
	mu       sync.Mutex
	document []byte
	stores   int
}

func (c *memoryKeySetCache) Load(context.Context) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.document == nil {
		return nil, false, nil
	}
	return c.document, true, nil
}

func (c *memoryKeySetCache) Store(_ context.Context, document []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.document = append([]byte(nil), document...)
	c.stores++
	return nil
}
