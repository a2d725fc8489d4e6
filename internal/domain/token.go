package domain

import "math/big"

// TokenID identifies an asset in the registry. For ERC20-style assets it is
// the lowercased contract address, for ERC1155 assets the encoded asset id.
type TokenID string

// TokenType classifies the protocol asset representations.
type TokenType int

const (
	TokenTypeUnderlying TokenType = iota
	TokenTypePrimeCash
	TokenTypePrimeDebt
	TokenTypeNToken
	TokenTypeFCash
	TokenTypeVaultShare
	TokenTypeVaultDebt
	TokenTypeVaultCash
	TokenTypeIncentive
)

func (t TokenType) String() string {
	switch t {
	case TokenTypeUnderlying:
		return "Underlying"
	case TokenTypePrimeCash:
		return "PrimeCash"
	case TokenTypePrimeDebt:
		return "PrimeDebt"
	case TokenTypeNToken:
		return "nToken"
	case TokenTypeFCash:
		return "fCash"
	case TokenTypeVaultShare:
		return "VaultShare"
	case TokenTypeVaultDebt:
		return "VaultDebt"
	case TokenTypeVaultCash:
		return "VaultCash"
	case TokenTypeIncentive:
		return "Incentive"
	default:
		return "unknown"
	}
}

// Token is the static metadata of one asset, resolved via the registry.
type Token struct {
	ID         TokenID
	Symbol     string
	Type       TokenType
	CurrencyID uint16
	Precision  *big.Int
	Maturity   uint64 // 0 for assets without a maturity
	Underlying TokenID
}

// HasMaturity reports whether the asset is maturity-bearing.
func (t Token) HasMaturity() bool {
	return t.Maturity != 0
}

// Precision and rate constants for the raw-unit integer math. These package
// values are shared and must never be mutated in place.
var (
	InternalTokenPrecision = big.NewInt(100_000_000)
	RatePrecision          = big.NewInt(1_000_000_000)
	ScalarPrecision        = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	SecondsPerYear         = big.NewInt(31_104_000)

	// Dust is the accumulated balance below which a position is treated as
	// closed; TransientDust marks line items that only exist for internal
	// accounting.
	Dust          = big.NewInt(100)
	TransientDust = big.NewInt(5000)
)

// PrimeCashVaultMaturity marks variable-rate vault positions (max uint40).
const PrimeCashVaultMaturity uint64 = 1<<40 - 1
