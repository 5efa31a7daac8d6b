// Package signer builds canonical exchange query strings and signs them with
// HMAC-SHA256 the way the futures REST API expects.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"futuresProxy/internal/ports"
)

// Query is an ordered list of key=value parameters. Unlike url.Values it keeps
// insertion order, so the string that is signed is exactly the one sent.
type Query struct {
	keys   []string
	values []string
}

// NewQuery returns an empty query.
func NewQuery() *Query {
	return &Query{}
}

// Set appends key=value, or replaces the value in place if key is already present.
func (q *Query) Set(key, value string) *Query {
	for i, k := range q.keys {
		if k == key {
			q.values[i] = value
			return q
		}
	}
	q.keys = append(q.keys, key)
	q.values = append(q.values, value)
	return q
}

// Get returns the value stored for key.
func (q *Query) Get(key string) (string, bool) {
	for i, k := range q.keys {
		if k == key {
			return q.values[i], true
		}
	}
	return "", false
}

// Len returns the number of parameters.
func (q *Query) Len() int {
	return len(q.keys)
}

// Encode joins the parameters as k=v pairs separated by '&'.
func (q *Query) Encode() string {
	var sb strings.Builder
	for i, k := range q.keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(q.values[i]))
	}
	return sb.String()
}

// Sign returns the lowercase hex HMAC-SHA256 of payload keyed by secret.
func Sign(secret, payload string) (string, error) {
	if secret == "" {
		return "", ports.ErrEmptySecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// SignQuery encodes q and appends the signature as the final parameter.
func SignQuery(secret string, q *Query) (string, error) {
	encoded := q.Encode()
	sig, err := Sign(secret, encoded)
	if err != nil {
		return "", err
	}
	if encoded == "" {
		return "signature=" + sig, nil
	}
	return encoded + "&signature=" + sig, nil
}
