package domain

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ChainID uint64

func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// Address is a lowercase 0x-prefixed hex contract address.
// The zero address is the sentinel for a chain's native asset.
type Address string

const NativeAddress Address = "0x0000000000000000000000000000000000000000"

// NormalizeAddress lowercases an address so map keys and comparisons
// are checksum-insensitive.
func NormalizeAddress(s string) Address {
	return Address(strings.ToLower(s))
}

func (a Address) IsNative() bool {
	return a == NativeAddress || a == ""
}

func (a Address) String() string {
	return string(a)
}

// Token identifies an asset on one chain. Identity is (ChainID, Address);
// Symbol is carried for logs and registry lookups only.
type Token struct {
	ChainID  ChainID `json:"chainId"`
	Address  Address `json:"address"`
	Decimals uint8   `json:"decimals"`
	Symbol   string  `json:"symbol,omitempty"`
}

func (t Token) IsNative() bool {
	return t.Address.IsNative()
}

func (t Token) Equal(other Token) bool {
	return t.ChainID == other.ChainID && t.Address == other.Address
}

// PairKey is a canonical cache key for an unordered token pair on one chain.
func PairKey(chainID ChainID, a, b Address) string {
	if a > b {
		a, b = b, a
	}
	return chainID.String() + ":" + string(a) + ":" + string(b)
}

// TokenKey is the cache key for all pairs one token participates in.
func TokenKey(chainID ChainID, a Address) string {
	return chainID.String() + ":" + string(a)
}

// Edge is one tradable pool between two tokens, as reported by the
// pair-data provider. Edges live only inside the oracle cache TTL.
type Edge struct {
	TokenA         Token
	TokenB         Token
	VenueID        string
	LiquidityUSD   decimal.Decimal
	ReserveA       *big.Int
	ReserveB       *big.Int
	LastVerifiedAt time.Time
}

// Other returns the edge's counterparty token for addr, and whether
// addr participates in the edge at all.
func (e *Edge) Other(addr Address) (Token, bool) {
	switch addr {
	case e.TokenA.Address:
		return e.TokenB, true
	case e.TokenB.Address:
		return e.TokenA, true
	}
	return Token{}, false
}

// Reserves returns (reserveIn, reserveOut) oriented for a swap entering
// the edge at fromAddr.
func (e *Edge) Reserves(fromAddr Address) (*big.Int, *big.Int, bool) {
	switch fromAddr {
	case e.TokenA.Address:
		return e.ReserveA, e.ReserveB, true
	case e.TokenB.Address:
		return e.ReserveB, e.ReserveA, true
	}
	return nil, nil, false
}

// Usable reports whether the edge clears the minimum-liquidity floor.
func (e *Edge) Usable(minLiquidityUSD decimal.Decimal) bool {
	return e.LiquidityUSD.GreaterThanOrEqual(minLiquidityUSD)
}
