package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LineItem is one signed accounting entry derived from a bundle. Sign
// convention: a positive TokenAmount grows the account's position and its
// realized/spot underlying amounts are negative (cost is an outflow); a
// negative TokenAmount reduces the position and the underlying amounts are
// positive (proceeds are an inflow).
type LineItem struct {
	BundleID    string
	BundleKind  BundleKind
	TxHash      common.Hash
	BlockNumber uint64
	Timestamp   uint64

	Account    common.Address
	Token      TokenID
	Underlying TokenID

	TokenAmount              *big.Int
	UnderlyingAmountRealized *big.Int
	UnderlyingAmountSpot     *big.Int

	// Prices are absolute values in underlying precision.
	RealizedPrice *big.Int
	SpotPrice     *big.Int

	// ImpliedFixedRate is set only for maturity-bearing assets whose realized
	// price converts to a finite rate. FeesPaid is set when a fee leg is
	// attributed to this item.
	ImpliedFixedRate *big.Int
	FeesPaid         *big.Int

	// IncentivizedToken points at the yield token a reward claim belongs to;
	// empty for regular entries.
	IncentivizedToken TokenID

	// IsTransient marks entries whose balance effect is below the dust
	// threshold; they exist only to keep internal accounting consistent.
	IsTransient bool
}
