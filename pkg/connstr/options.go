package connstr

import (
	"sort"
)

// Redacted lists the canonical keywords whose values are masked by
// Options.Redacted.
var Redacted = []string{"password", "pwd"}

const redactedValue = "*****"

// Options is the parsed form of a connection string.
type Options struct {
	raw     string
	entries map[string]string
	chain   KeyChain
}

// Empty returns Options for the empty connection string.
func Empty() *Options {
	return &Options{entries: map[string]string{}}
}

// IsEmpty reports whether no pair was parsed. This holds for the empty
// string and for input made only of whitespace, semicolons and NULs.
func (o *Options) IsEmpty() bool {
	return o.chain.Len() == 0
}

// ConnectionString returns the connection string as supplied by the caller.
func (o *Options) ConnectionString() string {
	return o.raw
}

// Get returns the value for a canonical keyword, or "" when it is absent.
func (o *Options) Get(key string) string {
	return o.entries[key]
}

// Lookup returns the value for a canonical keyword and whether it was present.
func (o *Options) Lookup(key string) (string, bool) {
	v, ok := o.entries[key]
	return v, ok
}

// Has reports whether the canonical keyword was present.
func (o *Options) Has(key string) bool {
	_, ok := o.entries[key]
	return ok
}

// Len returns the number of distinct canonical keywords.
func (o *Options) Len() int {
	return len(o.entries)
}

// Keys returns the distinct canonical keywords, sorted.
func (o *Options) Keys() []string {
	keys := make([]string, 0, len(o.entries))
	for k := range o.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns a copy of the keyword to value mapping.
func (o *Options) Entries() map[string]string {
	out := make(map[string]string, len(o.entries))
	for k, v := range o.entries {
		out[k] = v
	}
	return out
}

// Pairs returns a copy of the accepted pairs in parse order.
func (o *Options) Pairs() []Pair {
	return o.chain.Pairs()
}

// Chain returns the ordered record of accepted pairs.
func (o *Options) Chain() KeyChain {
	return o.chain
}

// String rebuilds a normalized connection string from the key chain.
func (o *Options) String() string {
	var b Builder
	for _, p := range o.chain.pairs {
		b.Append(p.Key, p.Value)
	}
	return b.String()
}

// Redacted rebuilds the connection string with secret values masked.
// Values that are themselves connection strings are masked recursively.
func (o *Options) Redacted() string {
	var b Builder
	for _, p := range o.chain.pairs {
		b.Append(p.Key, RedactValue(p.Key, p.Value))
	}
	return b.String()
}

// RedactValue masks value when key is a secret keyword, or when value is a
// nested connection string holding one.
func RedactValue(key, value string) string {
	for _, secret := range Redacted {
		if key == secret {
			return redactedValue
		}
	}
	nested, err := Parse(value, nil)
	if err != nil || nested.IsEmpty() {
		return value
	}
	for _, secret := range Redacted {
		if nested.Has(secret) {
			return nested.Redacted()
		}
	}
	return value
}
