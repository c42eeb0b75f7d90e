package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownClient pools every request without a forwarded client address into
// one shared bucket.
const UnknownClient = "unknown"

// Key addresses a single counter bucket.
type Key struct {
	Identifier   string `json:"identifier"`
	Endpoint     string `json:"endpoint"`
	SecondaryKey string `json:"secondary_key,omitempty"`
}

// NewKey builds a normalised Key. An empty identifier maps to UnknownClient.
func NewKey(identifier, endpoint, secondaryKey string) Key {
	return Key{
		Identifier:   NormalizeIdentifier(identifier),
		Endpoint:     strings.TrimSpace(endpoint),
		SecondaryKey: strings.ToLower(strings.TrimSpace(secondaryKey)),
	}
}

// String renders the key for logs and Redis key names.
func (k Key) String() string {
	return k.Identifier + ":" + k.Endpoint + ":" + k.SecondaryKey
}

// NormalizeIdentifier trims and lower-cases an identifier.
func NormalizeIdentifier(identifier string) string {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return UnknownClient
	}
	return identifier
}

// ClientIdentifier derives the client identifier from forwarded-IP headers.
// The first X-Forwarded-For entry wins, then X-Real-IP, then UnknownClient.
func ClientIdentifier(r *http.Request) string {
	if r == nil {
		return UnknownClient
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return NormalizeIdentifier(ip)
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return NormalizeIdentifier(ip)
	}
	return UnknownClient
}
