package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultKeyCacheTTL      = 10 * time.Minute
	defaultKeyFetchTimeout  = 5 * time.Second
	defaultKeyFetchAttempts = 3
	defaultKeyRetryBase     = 200 * time.Millisecond
	defaultKeyRetryMax      = 2 * time.Second
	defaultKeyRefreshFloor  = 30 * time.Second
	maxKeySetBytes          = 1 << 20
	refreshGroupKey         = "jwks"
)

var (
	// ErrKeyNotFound indicates that the published key set has no key for the identifier.
	ErrKeyNotFound = errors.New("auth: signing key not found in key set")
	// ErrInvalidKeyProviderConfig reports a JWKSProvider configuration problem.
	ErrInvalidKeyProviderConfig = errors.New("auth: invalid key provider config")

	errMissingKeySetURL = errors.New("key set url configuration required")
	errNoUsableKeys     = errors.New("key set contained no usable keys")
)

// KeyProvider resolves the public key used to verify tokens signed under keyID.
type KeyProvider interface {
	SigningKey(ctx context.Context, keyID string) (*rsa.PublicKey, error)
}

// KeySetCache stores the raw key-set document so several replicas can share one fetch.
type KeySetCache interface {
	Load(ctx context.Context) ([]byte, bool, error)
	Store(ctx context.Context, document []byte) error
}

// JWKSProviderConfig configures a JWKSProvider.
type JWKSProviderConfig struct {
	URL           string
	HTTPClient    *http.Client
	CacheTTL      time.Duration
	FetchTimeout  time.Duration
	FetchAttempts int
	SharedCache   KeySetCache
	Logger        *zap.Logger
	Clock         func() time.Time

	// MinRefreshInterval is how long a freshly loaded key set answers unknown key ids
	// without contacting the issuer again.
	MinRefreshInterval time.Duration
}

// JWKSProvider fetches the issuer's published key set and caches it in process for a
// bounded time. Concurrent refreshes are coalesced into one fetch.
type JWKSProvider struct {
	url                string
	httpClient         *http.Client
	fetchTimeout       time.Duration
	fetchAttempts      int
	retryBase          time.Duration
	retryMax           time.Duration
	minRefreshInterval time.Duration
	shared             KeySetCache
	logger             *zap.Logger
	clock              func() time.Time
	cache              *keyCache
	refreshes          singleflight.Group
}

// NewJWKSProvider constructs a provider with validated configuration.
func NewJWKSProvider(cfg JWKSProviderConfig) (*JWKSProvider, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyProviderConfig, errMissingKeySetURL)
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultKeyCacheTTL
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = defaultKeyFetchTimeout
	}
	fetchAttempts := cfg.FetchAttempts
	if fetchAttempts <= 0 {
		fetchAttempts = defaultKeyFetchAttempts
	}
	minRefreshInterval := cfg.MinRefreshInterval
	if minRefreshInterval <= 0 {
		minRefreshInterval = defaultKeyRefreshFloor
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &JWKSProvider{
		url:                url,
		httpClient:         httpClient,
		fetchTimeout:       fetchTimeout,
		fetchAttempts:      fetchAttempts,
		retryBase:          defaultKeyRetryBase,
		retryMax:           defaultKeyRetryMax,
		minRefreshInterval: minRefreshInterval,
		shared:             cfg.SharedCache,
		logger:             logger,
		clock:              clock,
		cache:              &keyCache{ttl: cacheTTL},
	}, nil
}

// SigningKey returns the cached key for keyID, refreshing the key set on a miss. A miss
// against a key set loaded less than MinRefreshInterval ago fails without a refresh.
func (p *JWKSProvider) SigningKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	if keyID == "" {
		return nil, ErrKeyNotFound
	}
	now := p.clock()
	if key := p.cache.get(keyID, now); key != nil {
		return key, nil
	}
	if p.cache.refreshedWithin(p.minRefreshInterval, now) {
		p.logger.Debug("unknown key id within refresh interval", zap.String("kid", keyID))
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, keyID)
	}

	if p.shared != nil && p.loadShared(ctx) {
		if key := p.cache.get(keyID, p.clock()); key != nil {
			return key, nil
		}
	}

	if err := p.refresh(ctx); err != nil {
		return nil, err
	}
	if key := p.cache.get(keyID, p.clock()); key != nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, keyID)
}

func (p *JWKSProvider) loadShared(ctx context.Context) bool {
	document, ok, err := p.shared.Load(ctx)
	if err != nil {
		p.logger.Warn("shared key set load failed", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	keys, err := parseKeySet(document, p.logger)
	if err != nil {
		p.logger.Debug("shared key set unusable", zap.Error(err))
		return false
	}
	p.cache.store(keys, p.clock())
	return true
}

func (p *JWKSProvider) refresh(ctx context.Context) error {
	result := p.refreshes.DoChan(refreshGroupKey, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.fetchTimeout)
		defer cancel()

		document, err := p.fetchWithRetry(fetchCtx)
		if err != nil {
			return nil, err
		}
		keys, err := parseKeySet(document, p.logger)
		if err != nil {
			return nil, err
		}
		p.cache.store(keys, p.clock())

		if p.shared != nil {
			if err := p.shared.Store(fetchCtx, document); err != nil {
				p.logger.Warn("shared key set store failed", zap.Error(err))
			}
		}
		return nil, nil
	})

	select {
	case outcome := <-result:
		return outcome.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *JWKSProvider) fetchWithRetry(ctx context.Context) ([]byte, error) {
	delay := p.retryBase
	var lastErr error
	for attempt := 0; attempt < p.fetchAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, delay); err != nil {
				return nil, fmt.Errorf("key set fetch: %w (last error: %v)", err, lastErr)
			}
			delay *= 2
			if delay > p.retryMax {
				delay = p.retryMax
			}
		}
		document, err := p.fetchOnce(ctx)
		if err == nil {
			return document, nil
		}
		lastErr = err
		p.logger.Debug("key set fetch attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (p *JWKSProvider) fetchOnce(ctx context.Context) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}

	response, err := p.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key set request returned status %d", response.StatusCode)
	}
	return io.ReadAll(io.LimitReader(response.Body, maxKeySetBytes))
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type keyCache struct {
	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	refreshedAt time.Time
	expiresAt   time.Time
	ttl         time.Duration
}

func (c *keyCache) get(keyID string, now time.Time) *rsa.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys == nil || now.After(c.expiresAt) {
		return nil
	}
	return c.keys[keyID]
}

func (c *keyCache) refreshedWithin(interval time.Duration, now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys == nil || now.After(c.expiresAt) {
		return false
	}
	return now.Sub(c.refreshedAt) < interval
}

func (c *keyCache) store(keys map[string]*rsa.PublicKey, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = keys
	c.refreshedAt = now
	c.expiresAt = now.Add(c.ttl)
}

type keySetDocument struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	KeyType  string `json:"kty"`
	Alg      string `json:"alg"`
	KeyID    string `json:"kid"`
	Use      string `json:"use"`
	Modulus  string `json:"n"`
	Exponent string `json:"e"`
}

func parseKeySet(document []byte, logger *zap.Logger) (map[string]*rsa.PublicKey, error) {
	var keySet keySetDocument
	if err := json.Unmarshal(document, &keySet); err != nil {
		return nil, fmt.Errorf("decode key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(keySet.Keys))
	for _, key := range keySet.Keys {
		if key.KeyType != "RSA" || key.KeyID == "" {
			continue
		}
		if key.Use != "" && key.Use != "sig" {
			continue
		}
		publicKey, err := key.toRSAPublicKey()
		if err != nil {
			logger.Debug("skipping jwk", zap.String("kid", key.KeyID), zap.Error(err))
			continue
		}
		keys[key.KeyID] = publicKey
	}

	if len(keys) == 0 {
		return nil, errNoUsableKeys
	}
	return keys, nil
}

func (k jwk) toRSAPublicKey() (*rsa.PublicKey, error) {
	if k.Modulus == "" || k.Exponent == "" {
		return nil, errors.New("missing rsa parameters")
	}
	modulusBytes, err := base64.RawURLEncoding.DecodeString(k.Modulus)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus encoding: %w", err)
	}
	exponentBytes, err := base64.RawURLEncoding.DecodeString(k.Exponent)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent encoding: %w", err)
	}

	exponent := new(big.Int).SetBytes(exponentBytes)
	if exponent.Sign() <= 0 || exponent.BitLen() > 31 {
		return nil, errors.New("invalid exponent value")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulusBytes),
		E: int(exponent.Int64()),
	}, nil
}
