package chain

import (
	"fmt"
	"strings"
)

// Chain identifies a monitored blockchain network.
type Chain int

const (
	Ethereum Chain = iota
	Polygon
)

// names are the canonical lowercase identifiers used in config, storage, and
// the HTTP API.
var names = map[Chain]string{
	Ethereum: "ethereum",
	Polygon:  "polygon",
}

// hexIDs map each chain to the raw EVM chain-id string used by upstream
// providers.
var hexIDs = map[Chain]string{
	Ethereum: "0x1",
	Polygon:  "0x89",
}

// All returns the supported chains in a stable order.
func All() []Chain {
	return []Chain{Ethereum, Polygon}
}

// String returns the canonical chain name.
func (c Chain) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("chain(%d)", int(c))
}

// HexID returns the provider-facing hexadecimal chain id.
func (c Chain) HexID() string {
	return hexIDs[c]
}

// Valid reports whether c is one of the supported chains.
func (c Chain) Valid() bool {
	_, ok := names[c]
	return ok
}

// Parse resolves a chain from its canonical name or raw hex id.
func Parse(s string) (Chain, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for _, c := range All() {
		if normalized == names[c] || normalized == hexIDs[c] {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unsupported chain %q", s)
}
