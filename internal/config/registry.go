package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/andrew-solarstorm/go-packages/common"
	"github.com/pelletier/go-toml/v2"

	"github.com/swapmesh/route-resolver/internal/domain"
)

// Intermediary classes, in catalog priority order.
const (
	ClassWrappedNative = "wrapped-native"
	ClassStablecoin    = "stablecoin"
	ClassBlueChip      = "blue-chip"
)

// TokenEntry is a token as declared in the registry file.
type TokenEntry struct {
	Address  string `toml:"address"`
	Symbol   string `toml:"symbol"`
	Decimals uint8  `toml:"decimals"`
	Class    string `toml:"class,omitempty"`
}

// VenueEntry describes one exchange venue on a chain.
type VenueEntry struct {
	ID                    string `toml:"id"`
	Router                string `toml:"router"`
	Factory               string `toml:"factory"`
	FeeBps                uint32 `toml:"fee_bps"`
	SupportsFeeOnTransfer bool   `toml:"supports_fee_on_transfer"`
}

// ChainEntry is one chain's full registry record.
type ChainEntry struct {
	ID             uint64       `toml:"id"`
	Name           string       `toml:"name"`
	RPCURL         string       `toml:"rpc_url"`
	WrappedNative  TokenEntry   `toml:"wrapped_native"`
	Intermediaries []TokenEntry `toml:"intermediaries"`
	Venues         []VenueEntry `toml:"venues"`
	// Bridgeable lists symbols transferable off this chain via at least
	// one bridge provider.
	Bridgeable []string `toml:"bridgeable"`
	// GasPerSwapUSD is a flat per-hop gas estimate used for scoring.
	GasPerSwapUSD float64 `toml:"gas_per_swap_usd"`
}

// BridgeProviderEntry configures one bridge provider endpoint.
type BridgeProviderEntry struct {
	ID          string  `toml:"id"`
	Endpoint    string  `toml:"endpoint"`
	Reliability float64 `toml:"reliability"`
}

type registryFile struct {
	Chains  []ChainEntry          `toml:"chains"`
	Bridges []BridgeProviderEntry `toml:"bridges"`
}

// Registry is the immutable per-chain catalog of venues, intermediary
// tokens and bridge providers. It is loaded once at startup and injected
// into the route finder and bridge selector; nothing mutates it after
// Load.
type Registry struct {
	Path string

	chains  map[domain.ChainID]*ChainEntry
	bridges []BridgeProviderEntry
}

// NewRegistryFromEntries builds a registry programmatically, bypassing
// the TOML file. Used by tests and embedders.
func NewRegistryFromEntries(chains []ChainEntry, bridges []BridgeProviderEntry) *Registry {
	r := &Registry{
		chains:  make(map[domain.ChainID]*ChainEntry, len(chains)),
		bridges: bridges,
	}
	for i := range chains {
		c := &chains[i]
		r.chains[domain.ChainID(c.ID)] = c
	}
	return r
}

func (r *Registry) Key() string {
	return REGISTRY_CONFIG_KEY
}

func (r *Registry) Load() error {
	r.Path = common.GetEnvOrDefault("RESOLVER_REGISTRY_PATH", "./config/registry.toml")
	raw, err := os.ReadFile(r.Path)
	if err != nil {
		return fmt.Errorf("read registry %s: %w", r.Path, err)
	}
	var file registryFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse registry %s: %w", r.Path, err)
	}
	r.chains = make(map[domain.ChainID]*ChainEntry, len(file.Chains))
	for i := range file.Chains {
		c := &file.Chains[i]
		r.chains[domain.ChainID(c.ID)] = c
	}
	r.bridges = file.Bridges
	return r.Validate()
}

func (r *Registry) Validate() error {
	if len(r.chains) == 0 {
		return errors.New("registry declares no chains")
	}
	for id, c := range r.chains {
		if c.WrappedNative.Address == "" {
			return fmt.Errorf("chain %d missing wrapped native token", id)
		}
		if len(c.Venues) == 0 {
			return fmt.Errorf("chain %d declares no venues", id)
		}
	}
	return nil
}

func (r *Registry) Chain(id domain.ChainID) (*ChainEntry, bool) {
	c, ok := r.chains[id]
	return c, ok
}

func (r *Registry) ChainIDs() []domain.ChainID {
	ids := make([]domain.ChainID, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	return ids
}

// WrappedNative returns the chain's wrapped native token.
func (r *Registry) WrappedNative(id domain.ChainID) (domain.Token, bool) {
	c, ok := r.chains[id]
	if !ok {
		return domain.Token{}, false
	}
	return entryToken(id, c.WrappedNative), true
}

// Intermediaries returns the chain's bridge-token catalog in priority
// order: wrapped native first, then stablecoins, then blue-chips. The
// wrapped native token is always included even if the file omits it
// from the intermediary list.
func (r *Registry) Intermediaries(id domain.ChainID) []domain.Token {
	c, ok := r.chains[id]
	if !ok {
		return nil
	}
	wrapped := entryToken(id, c.WrappedNative)
	out := make([]domain.Token, 0, len(c.Intermediaries)+1)
	out = append(out, wrapped)
	for _, class := range []string{ClassWrappedNative, ClassStablecoin, ClassBlueChip} {
		for _, e := range c.Intermediaries {
			t := entryToken(id, e)
			if e.Class != class || t.Equal(wrapped) {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) Venues(id domain.ChainID) []VenueEntry {
	c, ok := r.chains[id]
	if !ok {
		return nil
	}
	return c.Venues
}

// Venue resolves a venue by ID on a chain.
func (r *Registry) Venue(id domain.ChainID, venueID string) (VenueEntry, bool) {
	for _, v := range r.Venues(id) {
		if v.ID == venueID {
			return v, true
		}
	}
	return VenueEntry{}, false
}

// DefaultVenue is the first venue declared for the chain, used for
// catalog hops that have no oracle-reported edge.
func (r *Registry) DefaultVenue(id domain.ChainID) (VenueEntry, bool) {
	vs := r.Venues(id)
	if len(vs) == 0 {
		return VenueEntry{}, false
	}
	return vs[0], true
}

// GasPerSwapUSD returns the chain's flat per-hop gas estimate.
func (r *Registry) GasPerSwapUSD(id domain.ChainID) float64 {
	c, ok := r.chains[id]
	if !ok {
		return 0
	}
	return c.GasPerSwapUSD
}

// BridgeableTokens returns tokens valid on both chains for bridging, as
// (sourceToken, destToken) pairs matched by symbol, in the source
// chain's catalog priority order.
func (r *Registry) BridgeableTokens(from, to domain.ChainID) [][2]domain.Token {
	fromChain, ok := r.chains[from]
	if !ok {
		return nil
	}
	toChain, ok := r.chains[to]
	if !ok {
		return nil
	}
	toBySymbol := make(map[string]domain.Token)
	for _, sym := range toChain.Bridgeable {
		if t, ok := r.tokenBySymbol(to, sym); ok {
			toBySymbol[sym] = t
		}
	}
	var out [][2]domain.Token
	for _, sym := range fromChain.Bridgeable {
		src, ok := r.tokenBySymbol(from, sym)
		if !ok {
			continue
		}
		if dst, ok := toBySymbol[sym]; ok {
			out = append(out, [2]domain.Token{src, dst})
		}
	}
	return out
}

func (r *Registry) BridgeProviders() []BridgeProviderEntry {
	return r.bridges
}

func (r *Registry) tokenBySymbol(id domain.ChainID, symbol string) (domain.Token, bool) {
	c, ok := r.chains[id]
	if !ok {
		return domain.Token{}, false
	}
	if c.WrappedNative.Symbol == symbol {
		return entryToken(id, c.WrappedNative), true
	}
	for _, e := range c.Intermediaries {
		if e.Symbol == symbol {
			return entryToken(id, e), true
		}
	}
	return domain.Token{}, false
}

func entryToken(id domain.ChainID, e TokenEntry) domain.Token {
	return domain.Token{
		ChainID:  id,
		Address:  domain.NormalizeAddress(e.Address),
		Decimals: e.Decimals,
		Symbol:   e.Symbol,
	}
}
