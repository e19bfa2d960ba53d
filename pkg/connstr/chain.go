package connstr

import (
	"iter"
	"slices"
	"strconv"
	"strings"
)

// Pair is one accepted key/value pair. Key is the canonical keyword.
type Pair struct {
	Key   string
	Value string
}

// KeyChain is the ordered record of every pair accepted by Parse,
// duplicates included. It is append-only while parsing and read-only after.
type KeyChain struct {
	pairs []Pair
}

func (c *KeyChain) add(key, value string) {
	c.pairs = append(c.pairs, Pair{Key: key, Value: value})
}

// Len returns the number of pairs in the chain.
func (c KeyChain) Len() int { return len(c.pairs) }

// At returns the i-th pair.
func (c KeyChain) At(i int) Pair { return c.pairs[i] }

// All iterates the pairs in parse order.
func (c KeyChain) All() iter.Seq2[int, Pair] {
	return func(yield func(int, Pair) bool) {
		for i, p := range c.pairs {
			if !yield(i, p) {
				return
			}
		}
	}
}

// Pairs returns a copy of the pairs in parse order.
func (c KeyChain) Pairs() []Pair {
	return slices.Clone(c.pairs)
}

// Equal reports whether both chains hold the same pairs in the same order.
func (c KeyChain) Equal(other KeyChain) bool {
	return slices.Equal(c.pairs, other.pairs)
}

// PoolKey returns a string that is equal for two chains iff Equal reports
// true. Each key and value is length-prefixed so no separator can collide.
func (c KeyChain) PoolKey() string {
	var sb strings.Builder
	for _, p := range c.pairs {
		sb.WriteString(strconv.Itoa(len(p.Key)))
		sb.WriteByte(':')
		sb.WriteString(p.Key)
		sb.WriteString(strconv.Itoa(len(p.Value)))
		sb.WriteByte(':')
		sb.WriteString(p.Value)
	}
	return sb.String()
}
