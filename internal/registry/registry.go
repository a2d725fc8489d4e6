// Package registry resolves asset identifiers to their static metadata.
// Definitions are loaded from a yaml file so that currency and vault
// listings stay configuration, not code.
package registry

import (
	"math/big"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

// ErrNotFound is returned when an asset id is unknown to the registry.
// Unknown assets are fatal for downstream processing of the transfer.
var ErrNotFound = errors.New("asset not found in registry")

// Registry is the asset metadata lookup collaborator.
type Registry struct {
	tokens     map[domain.TokenID]domain.Token
	incentives map[uint16]IncentiveConfig
}

// IncentiveConfig lists the reward tokens registered for one currency: the
// protocol-wide primary reward plus at most one secondary reward.
type IncentiveConfig struct {
	CurrencyID      uint16
	PrimaryReward   domain.TokenID
	SecondaryReward domain.TokenID // empty when no secondary rewarder is set
}

type tokenYaml struct {
	ID         string `yaml:"id"`
	Symbol     string `yaml:"symbol"`
	Type       string `yaml:"type"`
	CurrencyID uint16 `yaml:"currency_id"`
	Decimals   uint8  `yaml:"decimals"`
	Maturity   uint64 `yaml:"maturity,omitempty"`
	Underlying string `yaml:"underlying,omitempty"`
}

type incentiveYaml struct {
	CurrencyID      uint16 `yaml:"currency_id"`
	PrimaryReward   string `yaml:"primary_reward"`
	SecondaryReward string `yaml:"secondary_reward,omitempty"`
}

type registryYaml struct {
	Tokens     []tokenYaml     `yaml:"tokens"`
	Incentives []incentiveYaml `yaml:"incentives"`
}

var tokenTypeNames = map[string]domain.TokenType{
	"Underlying": domain.TokenTypeUnderlying,
	"PrimeCash":  domain.TokenTypePrimeCash,
	"PrimeDebt":  domain.TokenTypePrimeDebt,
	"nToken":     domain.TokenTypeNToken,
	"fCash":      domain.TokenTypeFCash,
	"VaultShare": domain.TokenTypeVaultShare,
	"VaultDebt":  domain.TokenTypeVaultDebt,
	"VaultCash":  domain.TokenTypeVaultCash,
	"Incentive":  domain.TokenTypeIncentive,
}

// New builds an empty registry; tokens are added via Register or Load.
func New() *Registry {
	return &Registry{
		tokens:     make(map[domain.TokenID]domain.Token),
		incentives: make(map[uint16]IncentiveConfig),
	}
}

// Load reads asset definitions from a yaml file.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read registry file %s", path)
	}

	var parsed registryYaml
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(err, "unmarshal registry yaml")
	}

	r := New()
	for _, t := range parsed.Tokens {
		tokenType, ok := tokenTypeNames[t.Type]
		if !ok {
			return nil, errors.Errorf("unknown token type %q for asset %s", t.Type, t.ID)
		}

		precision := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(t.Decimals)), nil)
		r.Register(domain.Token{
			ID:         domain.TokenID(t.ID),
			Symbol:     t.Symbol,
			Type:       tokenType,
			CurrencyID: t.CurrencyID,
			Precision:  precision,
			Maturity:   t.Maturity,
			Underlying: domain.TokenID(t.Underlying),
		})
	}

	for _, inc := range parsed.Incentives {
		r.RegisterIncentives(IncentiveConfig{
			CurrencyID:      inc.CurrencyID,
			PrimaryReward:   domain.TokenID(inc.PrimaryReward),
			SecondaryReward: domain.TokenID(inc.SecondaryReward),
		})
	}

	return r, nil
}

// Register adds or replaces one token definition.
func (r *Registry) Register(token domain.Token) {
	r.tokens[token.ID] = token
}

// RegisterIncentives sets the reward configuration for one currency.
func (r *Registry) RegisterIncentives(cfg IncentiveConfig) {
	r.incentives[cfg.CurrencyID] = cfg
}

// Resolve returns the metadata for an asset id or ErrNotFound.
func (r *Registry) Resolve(id domain.TokenID) (domain.Token, error) {
	token, ok := r.tokens[id]
	if !ok {
		return domain.Token{}, errors.Wrapf(ErrNotFound, "asset %s", id)
	}
	return token, nil
}

// Underlying resolves the underlying asset for a currency id.
func (r *Registry) Underlying(currencyID uint16) (domain.Token, bool) {
	for _, t := range r.tokens {
		if t.Type == domain.TokenTypeUnderlying && t.CurrencyID == currencyID {
			return t, true
		}
	}
	return domain.Token{}, false
}

// Incentives returns the reward configuration for a currency, if registered.
func (r *Registry) Incentives(currencyID uint16) (IncentiveConfig, bool) {
	cfg, ok := r.incentives[currencyID]
	return cfg, ok
}

// NTokens lists every registered nToken, used when reconciling incentive
// claims that are not tied to a single currency.
func (r *Registry) NTokens() []domain.Token {
	var out []domain.Token
	for _, t := range r.tokens {
		if t.Type == domain.TokenTypeNToken {
			out = append(out, t)
		}
	}
	return out
}
