package lineitem

import (
	"math"
	"math/big"

	"go.uber.org/zap"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

// direction tells the builder which side of the transfer the entry is
// attributed to. It reuses the transfer kind vocabulary: Mint means the
// receiver gains a position, Burn means the sender reduces one.
type direction = domain.TransferKind

// build assembles one line item from a transfer and appends it to dst.
// Realized and spot amounts are given as positive magnitudes in underlying
// precision; the sign convention is applied here. A ratio (in rate
// precision) scales the entry when a transfer is split between a positive
// and a negative position. impliedRateBase, when set, is the underlying
// amount used to derive the implied fixed rate; feesPaid is attached as-is.
// Entries whose token amount nets out to zero are suppressed.
func (s *Synthesizer) build(
	dst []*domain.LineItem,
	bundle *domain.Bundle,
	transfer *domain.Transfer,
	dir direction,
	realized *big.Int,
	spot *big.Int,
	ratio *big.Int,
	impliedRateBase *big.Int,
	feesPaid *big.Int,
) []*domain.LineItem {
	item := &domain.LineItem{
		BundleID:    bundle.ID(),
		BundleKind:  bundle.Kind,
		TxHash:      bundle.TxHash,
		BlockNumber: bundle.BlockNumber,
		Timestamp:   bundle.Timestamp,
		Token:       transfer.Token,
		Underlying:  transfer.Underlying,
		FeesPaid:    feesPaid,
	}

	switch dir {
	case domain.TransferKindMint:
		item.Account = transfer.To
		item.TokenAmount = new(big.Int).Set(transfer.Value)
		item.UnderlyingAmountRealized = new(big.Int).Neg(realized)
		item.UnderlyingAmountSpot = new(big.Int).Neg(spot)
	case domain.TransferKindBurn:
		item.Account = transfer.From
		item.TokenAmount = new(big.Int).Neg(transfer.Value)
		item.UnderlyingAmountRealized = new(big.Int).Set(realized)
		item.UnderlyingAmountSpot = new(big.Int).Set(spot)
	default:
		s.logger.Error("line item direction must be mint or burn",
			zap.String("bundle", bundle.ID()),
			zap.String("direction", dir.String()))
		return dst
	}

	if ratio != nil {
		item.TokenAmount = quo(new(big.Int).Mul(item.TokenAmount, ratio), domain.RatePrecision)
		item.UnderlyingAmountRealized = quo(new(big.Int).Mul(item.UnderlyingAmountRealized, ratio), domain.RatePrecision)
		item.UnderlyingAmountSpot = quo(new(big.Int).Mul(item.UnderlyingAmountSpot, ratio), domain.RatePrecision)
	}

	if item.TokenAmount.Sign() == 0 {
		return dst
	}

	// Prices are absolute values in underlying precision.
	item.RealizedPrice = new(big.Int).Abs(quo(new(big.Int).Mul(realized, domain.InternalTokenPrecision), item.TokenAmount))
	item.SpotPrice = new(big.Int).Abs(quo(new(big.Int).Mul(spot, domain.InternalTokenPrecision), item.TokenAmount))

	if impliedRateBase != nil {
		item.ImpliedFixedRate = s.impliedFixedRate(transfer, item.TokenAmount, impliedRateBase, bundle.Timestamp)
	}

	return append(dst, item)
}

func (s *Synthesizer) buildSimple(
	dst []*domain.LineItem,
	bundle *domain.Bundle,
	transfer *domain.Transfer,
	dir direction,
	realized *big.Int,
	spot *big.Int,
) []*domain.LineItem {
	return s.build(dst, bundle, transfer, dir, realized, spot, nil, nil, nil)
}

// impliedFixedRate converts a realized price into an annualized fixed rate
// for maturity-bearing assets. It returns nil whenever the conversion is not
// representable: variable-rate maturities, matured positions, prices outside
// the int64 range and non-finite logarithms are all skipped rather than
// failed.
func (s *Synthesizer) impliedFixedRate(transfer *domain.Transfer, tokenAmount, base *big.Int, timestamp uint64) *big.Int {
	if transfer.Maturity == 0 ||
		transfer.Maturity == domain.PrimeCashVaultMaturity ||
		transfer.Maturity <= timestamp {
		return nil
	}
	underlying, err := s.tokens.Resolve(transfer.Underlying)
	if err != nil || underlying.Precision == nil || underlying.Precision.Sign() == 0 {
		return nil
	}

	price := new(big.Int).Abs(quo(new(big.Int).Mul(base, domain.InternalTokenPrecision), tokenAmount))
	priceInRate := quo(new(big.Int).Mul(price, domain.RatePrecision), underlying.Precision)
	if !priceInRate.IsInt64() || priceInRate.Sign() <= 0 {
		return nil
	}

	ratePrecision := float64(domain.RatePrecision.Int64())
	x := math.Trunc(math.Log(ratePrecision/float64(priceInRate.Int64())) * ratePrecision)
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}

	timeToMaturity := new(big.Int).SetUint64(transfer.Maturity - timestamp)
	return quo(new(big.Int).Mul(big.NewInt(int64(x)), domain.SecondsPerYear), timeToMaturity)
}

// quo is truncated division with a zero-divisor guard. A zero divisor yields
// zero instead of panicking; upstream data that triggers it is already
// corrupt and the entry will be suppressed or priced at zero.
func quo(x, y *big.Int) *big.Int {
	if y.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(x, y)
}

// findPrecedingBundle scans the transaction's earlier bundles in reverse and
// returns the transfers of the most recent bundle of the given kind, or nil.
func findPrecedingBundle(kind domain.BundleKind, prior []*domain.Bundle) []*domain.Transfer {
	for i := len(prior) - 1; i >= 0; i-- {
		if prior[i].Kind == kind {
			return prior[i].Transfers
		}
	}
	return nil
}
