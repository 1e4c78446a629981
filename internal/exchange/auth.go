// Package exchange implements the upstream Bittrex-style REST and WebSocket
// clients: request signing, rate-limited REST calls, and the reconnecting
// WebSocket feed.
package exchange

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"time"

	"dtc-btrex-bridge/internal/config"
)

// Auth signs upstream REST requests with a stored API key/secret pair
// (HMAC-SHA512 over timestamp+url+method[+content-hash]), the scheme a
// conventional exchange REST API expects.
//
// This is adapted from the L2 half of
// 0xtitan6-polymarket-mm/internal/exchange/auth.go — its HMAC-SHA256 header
// signer kept and regrounded on a stored secret rather than a wallet-derived
// one. The L1 EIP-712 wallet-signing half has no analogue here (see
// DESIGN.md) and is not carried over.
type Auth struct {
	apiKey    string
	apiSecret string
}

// NewAuth creates an Auth from the configured API key/secret pair.
func NewAuth(cfg config.ExchangeConfig) *Auth {
	return &Auth{apiKey: cfg.APIKey, apiSecret: cfg.APISecret}
}

// APIKey returns the configured API key (sent as a request header).
func (a *Auth) APIKey() string { return a.apiKey }

// Sign computes the HMAC-SHA512 signature for a REST request and returns
// the signature plus the timestamp (milliseconds) it was computed over.
func (a *Auth) Sign(method, url, contentHash string) (signature string, timestampMs int64) {
	ts := time.Now().UnixMilli()
	message := strconv.FormatInt(ts, 10) + url + method + contentHash
	mac := hmac.New(sha512.New, []byte(a.apiSecret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil)), ts
}

// ContentHash returns the SHA512 hash of a request body, hex-encoded, as
// required by the signing scheme for non-empty bodies.
func ContentHash(body []byte) string {
	sum := sha512.Sum512(body)
	return hex.EncodeToString(sum[:])
}
