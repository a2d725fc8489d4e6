package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SystemAccount classifies a transfer party.
type SystemAccount int

const (
	SystemAccountNone SystemAccount = iota
	SystemAccountZeroAddress
	SystemAccountNotional
	SystemAccountNToken
	SystemAccountVault
	SystemAccountFeeReserve
	SystemAccountSettlementReserve
	SystemAccountRewarder
)

func (s SystemAccount) String() string {
	switch s {
	case SystemAccountNone:
		return "None"
	case SystemAccountZeroAddress:
		return "ZeroAddress"
	case SystemAccountNotional:
		return "Notional"
	case SystemAccountNToken:
		return "nToken"
	case SystemAccountVault:
		return "Vault"
	case SystemAccountFeeReserve:
		return "FeeReserve"
	case SystemAccountSettlementReserve:
		return "SettlementReserve"
	case SystemAccountRewarder:
		return "Rewarder"
	default:
		return "unknown"
	}
}

// TransferKind is derived from the transfer parties.
type TransferKind int

const (
	TransferKindMint TransferKind = iota
	TransferKindBurn
	TransferKindTransfer
)

func (k TransferKind) String() string {
	switch k {
	case TransferKindMint:
		return "Mint"
	case TransferKindBurn:
		return "Burn"
	case TransferKindTransfer:
		return "Transfer"
	default:
		return "unknown"
	}
}

// DeriveTransferKind decodes the kind from the sender and receiver: minted
// from the zero address, burned to the zero address, a transfer otherwise.
func DeriveTransferKind(from, to common.Address) TransferKind {
	zero := common.Address{}
	if from == zero {
		return TransferKindMint
	}
	if to == zero {
		return TransferKindBurn
	}
	return TransferKindTransfer
}

// Transfer is one atomic value movement decoded from a raw event. It is
// immutable after creation except for the bundle assignment, which is set
// exactly once when the transfer is absorbed into a bundle.
type Transfer struct {
	TxHash      common.Hash
	LogIndex    uint32
	BlockNumber uint64
	Timestamp   uint64

	Token      TokenID
	TokenType  TokenType
	Maturity   uint64 // 0 when the asset has no maturity
	Underlying TokenID

	From       common.Address
	To         common.Address
	FromSystem SystemAccount
	ToSystem   SystemAccount
	Kind       TransferKind

	// Value is the unsigned raw amount in asset precision. ValueInUnderlying
	// is resolved by the oracle collaborator and nil when the asset could not
	// be priced this block.
	Value             *big.Int
	ValueInUnderlying *big.Int

	// BundleID is set by the bundler when the transfer joins a bundle.
	BundleID string
}

// Matured reports whether a maturity-bearing transfer has passed maturity.
func (t *Transfer) Matured() bool {
	return t.Maturity != 0 && t.Maturity != PrimeCashVaultMaturity && t.Maturity <= t.Timestamp
}

// Txn is the ordered batch of transfers decoded from one transaction.
type Txn struct {
	Hash        common.Hash
	BlockNumber uint64
	Timestamp   uint64
	Transfers   []*Transfer // ascending log-index order
}
