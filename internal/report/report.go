// Package report renders ledger snapshots into human-readable, decimal
// scaled PnL summaries.
package report

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

// TokenSource resolves asset metadata for precision scaling.
type TokenSource interface {
	Resolve(id domain.TokenID) (domain.Token, error)
	Underlying(currencyID uint16) (domain.Token, bool)
}

// Position is one account's standing in one asset, scaled out of raw units.
type Position struct {
	Account    string
	Token      string
	Underlying string

	Balance           decimal.Decimal
	AdjustedCostBasis decimal.Decimal
	CurrentPnL        decimal.Decimal
	TotalPnL          decimal.Decimal
	ILAndFees         decimal.Decimal
	InterestAccrued   decimal.Decimal
}

// Summary aggregates the latest position of every (account, asset) pair.
type Summary struct {
	Positions []Position
	TotalPnL  decimal.Decimal
}

type Builder struct {
	tokens TokenSource
}

func NewBuilder(tokens TokenSource) *Builder {
	return &Builder{tokens: tokens}
}

// Build summarizes the given snapshots, assumed one per (account, asset)
// pair, skipping assets missing from the registry.
func (b *Builder) Build(snapshots []*domain.BalanceSnapshot) Summary {
	summary := Summary{TotalPnL: decimal.Zero}

	for _, s := range snapshots {
		token, err := b.tokens.Resolve(s.Key.Token)
		if err != nil {
			continue
		}

		underlyingPrecision := token.Precision
		underlyingSymbol := token.Symbol
		if underlying, ok := b.tokens.Underlying(token.CurrencyID); ok {
			underlyingPrecision = underlying.Precision
			underlyingSymbol = underlying.Symbol
		}

		position := Position{
			Account:    s.Key.Account.Hex(),
			Token:      token.Symbol,
			Underlying: underlyingSymbol,

			Balance:           scale(s.CurrentBalance, token.Precision),
			AdjustedCostBasis: scale(s.AdjustedCostBasis, underlyingPrecision),
			CurrentPnL:        scale(s.CurrentPnL, underlyingPrecision),
			TotalPnL:          scale(s.TotalPnL, underlyingPrecision),
			ILAndFees:         scale(s.TotalILAndFees, underlyingPrecision),
			InterestAccrued:   scale(s.TotalInterestAccrual, underlyingPrecision),
		}
		summary.Positions = append(summary.Positions, position)
		summary.TotalPnL = summary.TotalPnL.Add(position.TotalPnL)
	}

	sort.Slice(summary.Positions, func(i, j int) bool {
		if summary.Positions[i].Account != summary.Positions[j].Account {
			return summary.Positions[i].Account < summary.Positions[j].Account
		}
		return summary.Positions[i].Token < summary.Positions[j].Token
	})

	return summary
}

// String renders the summary as an aligned plain-text table.
func (s Summary) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-44s %-12s %16s %16s %16s %16s\n",
		"ACCOUNT", "TOKEN", "BALANCE", "CURRENT PNL", "TOTAL PNL", "INTEREST"))
	for _, p := range s.Positions {
		sb.WriteString(fmt.Sprintf("%-44s %-12s %16s %16s %16s %16s\n",
			p.Account, p.Token,
			p.Balance.StringFixed(4),
			p.CurrentPnL.StringFixed(4),
			p.TotalPnL.StringFixed(4),
			p.InterestAccrued.StringFixed(4)))
	}
	sb.WriteString(fmt.Sprintf("total pnl: %s\n", s.TotalPnL.StringFixed(4)))
	return sb.String()
}

func scale(raw, precision *big.Int) decimal.Decimal {
	if raw == nil || precision == nil || precision.Sign() == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, 0).Div(decimal.NewFromBigInt(precision, 0))
}
