// Package auth gets registry credentials from token providers. Tokens are fetched
// once when a provider is first used and then refreshed by a goroutine on an interval.
// The only supported provider is AWS Elastic Container Registry ("ecr").
package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// provider formalizes the supported providers.
type provider int

// tokenGetter is a function that returns a token and an error.
type tokenGetter func(ctx context.Context, options string) (string, error)

// Defined providers
const (
	unknownProvider provider = iota
	ecrProvider
)

// providers converts a string to the typed provider.
var providers = map[string]provider{
	"ecr": ecrProvider,
}

// providerTostr converts typed provider to string.
var providerTostr = map[provider]string{
	ecrProvider: "ecr",
}

// getters has the token getter for each provider. Tests replace entries.
var getters = map[provider]tokenGetter{
	ecrProvider: getECRToken,
}

// tokenProvider has all the configuration to support token refresh.
type tokenProvider struct {
	// allows concurrent read/write access to the token value by fetchers and the
	// token refresher goroutine.
	sync.RWMutex
	// for error logging.
	providerStr string
	// provider options like foo=bar,bin=baz
	providerOpts string
	// the function that gets the token.
	getter tokenGetter
	// the last time the token was retrieved.
	lastTokenGet time.Time
	// token returned by the token getter function.
	token string
	// token refresh period.
	expiry time.Duration
	stop   chan struct{}
	done   chan struct{}
}

// tokenProviders has every token provider initialized by a call to the Init function,
// keyed by provider and options, since two hosts can use one provider with different
// options (e.g. regions).
var (
	mu             sync.Mutex
	tokenProviders = make(map[string]*tokenProvider)
)

func key(p provider, options string) string {
	return providerTostr[p] + "|" + options
}

// IsInitialized checks to see if the passed provider has already been initialized
// with the passed options.
func IsInitialized(providerStr string, options string) (bool, error) {
	p, err := toProvider(providerStr)
	if err != nil {
		return false, err
	}
	mu.Lock()
	defer mu.Unlock()
	_, ok := tokenProviders[key(p, options)]
	return ok, nil
}

// Init sets up a provider, gets an initial token value from the provider to verify
// that a token can actually be gotten (to support fail early), and then starts a
// goroutine to refresh the token according to the passed expiration. If expiration is
// empty then 12 hours is the default. Initializing an initialized provider is a no-op.
func Init(providerStr string, options string, expiry string) error {
	p, err := toProvider(providerStr)
	if err != nil {
		return err
	}
	if expiry == "" {
		expiry = "12h"
	}
	parsedExpiry, err := time.ParseDuration(expiry)
	if err != nil {
		return err
	}
	getter, err := getTokenGetter(p)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	k := key(p, options)
	if _, ok := tokenProviders[k]; ok {
		return nil
	}
	// make sure we can actually get the token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	token, err := getter(ctx, options)
	if err != nil {
		return err
	}
	tp := &tokenProvider{
		providerStr:  providerTostr[p],
		providerOpts: options,
		getter:       getter,
		lastTokenGet: time.Now(),
		token:        token,
		expiry:       parsedExpiry,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	tokenProviders[k] = tp
	go tokenRefresher(tp)
	return nil
}

// GetToken gets the current token value (which is being asynchronously refreshed
// by the token provider.)
func GetToken(providerStr string, options string) (string, error) {
	p, err := toProvider(providerStr)
	if err != nil {
		return "", err
	}
	mu.Lock()
	tp, ok := tokenProviders[key(p, options)]
	mu.Unlock()
	if !ok {
		return "", fmt.Errorf("provider not initialized: %s", providerStr)
	}
	tp.RLock()
	defer tp.RUnlock()
	return tp.token, nil
}

// Credentials initializes the provider if needed and returns the user name and password
// encoded in its current token. Registry tokens are base64 encoded 'user:password'.
func Credentials(providerStr string, options string, expiry string) (string, string, error) {
	if err := Init(providerStr, options, expiry); err != nil {
		return "", "", err
	}
	token, err := GetToken(providerStr, options)
	if err != nil {
		return "", "", err
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("unable to decode %s token: %w", providerStr, err)
	}
	user, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", fmt.Errorf("%s token is not in user:password form", providerStr)
	}
	return user, password, nil
}

// Shutdown stops every token refresher and forgets every provider.
func Shutdown() {
	mu.Lock()
	stopping := tokenProviders
	tokenProviders = make(map[string]*tokenProvider)
	mu.Unlock()
	for _, tp := range stopping {
		close(tp.stop)
		<-tp.done
	}
}

// tokenRefresher is intended to be run as a goroutine. It creates a time ticker
// according to the refresh interval in the passed token provider struct. On each
// tick of the ticker it calls the token getter function in the struct and updates
// the token in the struct from the token getter return value.
func tokenRefresher(tp *tokenProvider) {
	defer close(tp.done)
	ticker := time.NewTicker(tp.expiry)
	defer ticker.Stop()
	for {
		select {
		case <-tp.stop:
			return
		case <-ticker.C:
		}
		func() {
			log.Debugf("getting new token for provider %q", tp.providerStr)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			token, err := tp.getter(ctx, tp.providerOpts)
			if err != nil {
				log.Errorf("error getting token for provider %q: %s", tp.providerStr, err)
				return
			}
			tp.Lock()
			defer tp.Unlock()
			tp.token = token
			tp.lastTokenGet = time.Now()
		}()
	}
}

// toProvider validates the passed provider string (like "ECR") and returns the matching
// provider type values.
func toProvider(providerStr string) (provider, error) {
	p, ok := providers[strings.ToLower(providerStr)]
	if !ok {
		return unknownProvider, fmt.Errorf("unknown provider: %s", providerStr)
	}
	return p, nil
}

// getTokenGetter gets the token retrieval function for the passed provider.
func getTokenGetter(p provider) (tokenGetter, error) {
	if getter, ok := getters[p]; ok {
		return getter, nil
	}
	// should never happen
	return nil, fmt.Errorf("unknown provider: %d", p)
}
