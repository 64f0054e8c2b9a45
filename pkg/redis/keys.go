package redis

import "strings"

const defaultKeyPrefix = "gul"

// Keyspace builds the namespaced keys shared by every storefront process.
// The zero value uses the "gul" prefix.
type Keyspace struct {
	prefix string
}

func NewKeyspace(prefix string) Keyspace {
	return Keyspace{prefix: strings.Trim(strings.TrimSpace(prefix), ":")}
}

// RateLimitKey holds a fixed-window counter for scope.
func (k Keyspace) RateLimitKey(scope string) string {
	return k.join("rate_limit", scope)
}

// AccessSessionKey holds the refresh credential bound to an access token id.
func (k Keyspace) AccessSessionKey(accessID string) string {
	return k.join("session", "access", accessID)
}

// CartKey holds an owner's serialized cart.
func (k Keyspace) CartKey(ownerID string) string {
	return k.join("cart", ownerID)
}

func (k Keyspace) join(parts ...string) string {
	prefix := k.prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	var b strings.Builder
	b.WriteString(prefix)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
