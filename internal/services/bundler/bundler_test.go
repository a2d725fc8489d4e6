package bundler

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

var (
	alice     = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob       = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
	notional  = common.HexToAddress("0x1344a36a1b56144c3bc62e7757377d288fde0369")
	nToken    = common.HexToAddress("0x6e75b569a01ef56d18cab6a8e71e6600d6ce853f")
	vaultAddr = common.HexToAddress("0xdb08f663e5d765949054785f2ed1b2aa1e9c22cf")
	feeRes    = common.HexToAddress("0x0000000000000000000000000000000000000fee")
	settleRes = common.HexToAddress("0x00000000000000000000000000000000000005e7")
	rewarder  = common.HexToAddress("0x0000000000000000000000000000000000000ead")
	zeroAddr  = common.Address{}
	txHash    = common.HexToHash("0xdeadbeef00000000000000000000000000000000000000000000000000000001")
)

const testTimestamp = 1_700_000_000

// tb builds a transfer fixture with sequential log indexes.
type tb struct {
	next uint32
}

func (b *tb) transfer(tt domain.TokenType, from, to common.Address, fromSys, toSys domain.SystemAccount, value int64, maturity uint64) *domain.Transfer {
	t := &domain.Transfer{
		TxHash:     txHash,
		LogIndex:   b.next,
		Timestamp:  testTimestamp,
		Token:      domain.TokenID(tt.String()),
		TokenType:  tt,
		Maturity:   maturity,
		From:       from,
		To:         to,
		FromSystem: fromSys,
		ToSystem:   toSys,
		Kind:       domain.DeriveTransferKind(from, to),
		Value:      big.NewInt(value),
	}
	b.next++
	return t
}

func (b *tb) mint(tt domain.TokenType, to common.Address, toSys domain.SystemAccount, value int64, maturity uint64) *domain.Transfer {
	return b.transfer(tt, zeroAddr, to, domain.SystemAccountZeroAddress, toSys, value, maturity)
}

func (b *tb) burn(tt domain.TokenType, from common.Address, fromSys domain.SystemAccount, value int64, maturity uint64) *domain.Transfer {
	return b.transfer(tt, from, zeroAddr, fromSys, domain.SystemAccountZeroAddress, value, maturity)
}

func absorbAll(t *testing.T, transfers []*domain.Transfer) *State {
	t.Helper()
	st := NewState()
	for _, tr := range transfers {
		_, err := st.Absorb(tr)
		require.NoError(t, err)
	}
	return st
}

func bundleKinds(st *State) []domain.BundleKind {
	kinds := make([]domain.BundleKind, 0, len(st.Bundles))
	for _, b := range st.Bundles {
		kinds = append(kinds, b.Kind)
	}
	return kinds
}

func TestSingleTransferBundles(t *testing.T) {
	fCashMaturity := uint64(testTimestamp + 86400*90)
	maturedFCash := uint64(testTimestamp - 3600)

	tests := []struct {
		name  string
		build func(b *tb) []*domain.Transfer
		want  domain.BundleKind
	}{
		{
			name: "deposit",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.mint(domain.TokenTypePrimeCash, alice, domain.SystemAccountNone, 100e8, 0)}
			},
			want: domain.BundleDeposit,
		},
		{
			name: "withdraw",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.burn(domain.TokenTypePrimeCash, alice, domain.SystemAccountNone, 100e8, 0)}
			},
			want: domain.BundleWithdraw,
		},
		{
			name: "transfer incentive",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.transfer(domain.TokenTypeIncentive, notional, alice, domain.SystemAccountNotional, domain.SystemAccountNone, 5e8, 0)}
			},
			want: domain.BundleTransferIncentive,
		},
		{
			name: "transfer secondary incentive",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.transfer(domain.TokenTypeIncentive, rewarder, alice, domain.SystemAccountRewarder, domain.SystemAccountNone, 5e8, 0)}
			},
			want: domain.BundleTransferSecondaryIncentive,
		},
		{
			name: "settle cash",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.transfer(domain.TokenTypePrimeCash, settleRes, alice, domain.SystemAccountSettlementReserve, domain.SystemAccountNone, 100e8, 0)}
			},
			want: domain.BundleSettleCash,
		},
		{
			name: "settle cash ntoken",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.transfer(domain.TokenTypePrimeCash, settleRes, nToken, domain.SystemAccountSettlementReserve, domain.SystemAccountNToken, 100e8, 0)}
			},
			want: domain.BundleSettleCashNToken,
		},
		{
			name: "settle fcash",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.burn(domain.TokenTypeFCash, alice, domain.SystemAccountNone, 100e8, maturedFCash)}
			},
			want: domain.BundleSettleFCash,
		},
		{
			name: "settle fcash ntoken",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.burn(domain.TokenTypeFCash, nToken, domain.SystemAccountNToken, 100e8, maturedFCash)}
			},
			want: domain.BundleSettleFCashNToken,
		},
		{
			name: "settle fcash vault",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.burn(domain.TokenTypeFCash, vaultAddr, domain.SystemAccountVault, 100e8, maturedFCash)}
			},
			want: domain.BundleSettleFCashVault,
		},
		{
			name: "vault entry transfer",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.transfer(domain.TokenTypePrimeCash, alice, vaultAddr, domain.SystemAccountNone, domain.SystemAccountVault, 100e8, 0)}
			},
			want: domain.BundleVaultEntryTransfer,
		},
		{
			name: "vault lend at zero",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.transfer(domain.TokenTypePrimeCash, vaultAddr, settleRes, domain.SystemAccountVault, domain.SystemAccountSettlementReserve, 100e8, 0)}
			},
			want: domain.BundleVaultLendAtZero,
		},
		{
			name: "vault redeem",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.transfer(domain.TokenTypeUnderlying, vaultAddr, alice, domain.SystemAccountVault, domain.SystemAccountNone, 100e8, 0)}
			},
			want: domain.BundleVaultRedeem,
		},
		{
			name: "ntoken residual transfer",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.transfer(domain.TokenTypeFCash, nToken, alice, domain.SystemAccountNToken, domain.SystemAccountNone, 100e8, fCashMaturity)}
			},
			want: domain.BundleNTokenResidualTransfer,
		},
		{
			name: "transfer asset",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{b.transfer(domain.TokenTypeNToken, alice, bob, domain.SystemAccountNone, domain.SystemAccountNone, 100e8, 0)}
			},
			want: domain.BundleTransferAsset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := absorbAll(t, tt.build(&tb{}))
			require.Len(t, st.Bundles, 1)
			assert.Equal(t, tt.want, st.Bundles[0].Kind)
			assert.Empty(t, st.Pending())
		})
	}
}

func TestPairBundles(t *testing.T) {
	fCashMaturity := uint64(testTimestamp + 86400*90)

	tests := []struct {
		name  string
		build func(b *tb) []*domain.Transfer
		want  domain.BundleKind
	}{
		{
			name: "mint ntoken",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.transfer(domain.TokenTypePrimeCash, alice, nToken, domain.SystemAccountNone, domain.SystemAccountNToken, 100e8, 0),
					b.mint(domain.TokenTypeNToken, alice, domain.SystemAccountNone, 95e8, 0),
				}
			},
			want: domain.BundleMintNToken,
		},
		{
			name: "redeem ntoken",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.transfer(domain.TokenTypePrimeCash, nToken, alice, domain.SystemAccountNToken, domain.SystemAccountNone, 100e8, 0),
					b.burn(domain.TokenTypeNToken, alice, domain.SystemAccountNone, 95e8, 0),
				}
			},
			want: domain.BundleRedeemNToken,
		},
		{
			name: "borrow prime cash",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.mint(domain.TokenTypePrimeDebt, alice, domain.SystemAccountNone, 100e8, 0),
					b.mint(domain.TokenTypePrimeCash, alice, domain.SystemAccountNone, 100e8, 0),
				}
			},
			want: domain.BundleBorrowPrimeCash,
		},
		{
			name: "repay prime cash",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.burn(domain.TokenTypePrimeDebt, alice, domain.SystemAccountNone, 100e8, 0),
					b.burn(domain.TokenTypePrimeCash, alice, domain.SystemAccountNone, 100e8, 0),
				}
			},
			want: domain.BundleRepayPrimeCash,
		},
		{
			name: "borrow prime cash vault",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.mint(domain.TokenTypePrimeDebt, vaultAddr, domain.SystemAccountVault, 100e8, 0),
					b.mint(domain.TokenTypePrimeCash, vaultAddr, domain.SystemAccountVault, 100e8, 0),
				}
			},
			want: domain.BundleBorrowPrimeCashVault,
		},
		{
			name: "repay prime cash vault",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.burn(domain.TokenTypePrimeDebt, vaultAddr, domain.SystemAccountVault, 100e8, 0),
					b.burn(domain.TokenTypePrimeCash, vaultAddr, domain.SystemAccountVault, 100e8, 0),
				}
			},
			want: domain.BundleRepayPrimeCashVault,
		},
		{
			name: "borrow fcash",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.mint(domain.TokenTypeFCash, alice, domain.SystemAccountNone, -100e8, fCashMaturity),
					b.mint(domain.TokenTypeFCash, nToken, domain.SystemAccountNToken, 100e8, fCashMaturity),
				}
			},
			want: domain.BundleBorrowFCash,
		},
		{
			name: "repay fcash",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.burn(domain.TokenTypeFCash, alice, domain.SystemAccountNone, -100e8, fCashMaturity),
					b.burn(domain.TokenTypeFCash, nToken, domain.SystemAccountNToken, 100e8, fCashMaturity),
				}
			},
			want: domain.BundleRepayFCash,
		},
		{
			name: "ntoken purchase positive residual",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.transfer(domain.TokenTypePrimeCash, alice, nToken, domain.SystemAccountNone, domain.SystemAccountNToken, 100e8, 0),
					b.transfer(domain.TokenTypeFCash, nToken, alice, domain.SystemAccountNToken, domain.SystemAccountNone, 105e8, fCashMaturity),
				}
			},
			want: domain.BundleNTokenPurchasePositiveResidual,
		},
		{
			name: "ntoken purchase negative residual",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.transfer(domain.TokenTypePrimeCash, nToken, alice, domain.SystemAccountNToken, domain.SystemAccountNone, 100e8, 0),
					b.transfer(domain.TokenTypeFCash, alice, nToken, domain.SystemAccountNone, domain.SystemAccountNToken, 105e8, fCashMaturity),
				}
			},
			want: domain.BundleNTokenPurchaseNegativeResidual,
		},
		{
			name: "vault entry",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.mint(domain.TokenTypeVaultDebt, alice, domain.SystemAccountNone, -100e8, fCashMaturity),
					b.mint(domain.TokenTypeVaultShare, alice, domain.SystemAccountNone, 50e8, fCashMaturity),
				}
			},
			want: domain.BundleVaultEntry,
		},
		{
			name: "vault exit",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.burn(domain.TokenTypeVaultDebt, alice, domain.SystemAccountNone, -100e8, fCashMaturity),
					b.burn(domain.TokenTypeVaultShare, alice, domain.SystemAccountNone, 50e8, fCashMaturity),
				}
			},
			want: domain.BundleVaultExit,
		},
		{
			name: "vault fees",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.transfer(domain.TokenTypePrimeCash, vaultAddr, feeRes, domain.SystemAccountVault, domain.SystemAccountFeeReserve, 1e8, 0),
					b.transfer(domain.TokenTypePrimeCash, vaultAddr, nToken, domain.SystemAccountVault, domain.SystemAccountNToken, 2e8, 0),
				}
			},
			want: domain.BundleVaultFees,
		},
		{
			name: "vault deleverage fcash",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.mint(domain.TokenTypeVaultCash, alice, domain.SystemAccountNone, 100e8, fCashMaturity),
					b.transfer(domain.TokenTypeVaultShare, alice, bob, domain.SystemAccountNone, domain.SystemAccountNone, 50e8, fCashMaturity),
				}
			},
			want: domain.BundleVaultDeleverageFCash,
		},
		{
			name: "vault deleverage prime debt",
			build: func(b *tb) []*domain.Transfer {
				return []*domain.Transfer{
					b.mint(domain.TokenTypeVaultCash, alice, domain.SystemAccountNone, 100e8, domain.PrimeCashVaultMaturity),
					b.transfer(domain.TokenTypeVaultShare, alice, bob, domain.SystemAccountNone, domain.SystemAccountNone, 50e8, domain.PrimeCashVaultMaturity),
				}
			},
			want: domain.BundleVaultDeleveragePrimeDebt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := absorbAll(t, tt.build(&tb{}))
			require.Len(t, st.Bundles, 1)
			assert.Equal(t, tt.want, st.Bundles[0].Kind)
			assert.Len(t, st.Bundles[0].Transfers, 2)
			assert.Empty(t, st.Pending())
		})
	}
}

func TestTradeBundles(t *testing.T) {
	fCashMaturity := uint64(testTimestamp + 86400*90)
	b := &tb{}

	t.Run("buy fcash", func(t *testing.T) {
		st := absorbAll(t, []*domain.Transfer{
			b.transfer(domain.TokenTypePrimeCash, alice, nToken, domain.SystemAccountNone, domain.SystemAccountNToken, 98e8, 0),
			b.transfer(domain.TokenTypePrimeCash, alice, feeRes, domain.SystemAccountNone, domain.SystemAccountFeeReserve, 1e7, 0),
			b.mint(domain.TokenTypeFCash, alice, domain.SystemAccountNone, 100e8, fCashMaturity),
		})
		require.Len(t, st.Bundles, 1)
		assert.Equal(t, domain.BundleBuyFCash, st.Bundles[0].Kind)
		assert.Len(t, st.Bundles[0].Transfers, 3)
	})

	t.Run("sell fcash", func(t *testing.T) {
		st := absorbAll(t, []*domain.Transfer{
			b.transfer(domain.TokenTypePrimeCash, nToken, alice, domain.SystemAccountNToken, domain.SystemAccountNone, 98e8, 0),
			b.transfer(domain.TokenTypePrimeCash, alice, feeRes, domain.SystemAccountNone, domain.SystemAccountFeeReserve, 1e7, 0),
			b.burn(domain.TokenTypeFCash, alice, domain.SystemAccountNone, 100e8, fCashMaturity),
		})
		require.Len(t, st.Bundles, 1)
		assert.Equal(t, domain.BundleSellFCash, st.Bundles[0].Kind)
	})

	t.Run("buy fcash vault", func(t *testing.T) {
		st := absorbAll(t, []*domain.Transfer{
			b.transfer(domain.TokenTypePrimeCash, vaultAddr, nToken, domain.SystemAccountVault, domain.SystemAccountNToken, 98e8, 0),
			b.transfer(domain.TokenTypePrimeCash, vaultAddr, feeRes, domain.SystemAccountVault, domain.SystemAccountFeeReserve, 1e7, 0),
			b.burn(domain.TokenTypeFCash, vaultAddr, domain.SystemAccountVault, 100e8, fCashMaturity),
		})
		require.Len(t, st.Bundles, 1)
		assert.Equal(t, domain.BundleBuyFCashVault, st.Bundles[0].Kind)
	})

	t.Run("sell fcash vault", func(t *testing.T) {
		st := absorbAll(t, []*domain.Transfer{
			b.transfer(domain.TokenTypePrimeCash, nToken, vaultAddr, domain.SystemAccountNToken, domain.SystemAccountVault, 98e8, 0),
			b.transfer(domain.TokenTypePrimeCash, vaultAddr, feeRes, domain.SystemAccountVault, domain.SystemAccountFeeReserve, 1e7, 0),
			b.mint(domain.TokenTypeFCash, vaultAddr, domain.SystemAccountVault, 100e8, fCashMaturity),
		})
		require.Len(t, st.Bundles, 1)
		assert.Equal(t, domain.BundleSellFCashVault, st.Bundles[0].Kind)
	})
}

func TestDepositAndTransferRewrite(t *testing.T) {
	b := &tb{}
	st := absorbAll(t, []*domain.Transfer{
		b.mint(domain.TokenTypePrimeCash, alice, domain.SystemAccountNone, 100e8, 0),
		b.transfer(domain.TokenTypePrimeCash, alice, bob, domain.SystemAccountNone, domain.SystemAccountNone, 100e8, 0),
	})

	// The standalone Deposit is superseded by the rewrite.
	require.Len(t, st.Bundles, 1)
	assert.Equal(t, domain.BundleDepositAndTransfer, st.Bundles[0].Kind)
	assert.Len(t, st.Bundles[0].Transfers, 2)
	assert.Equal(t, st.Bundles[0].ID(), st.Transfers[0].BundleID)
	assert.Equal(t, st.Bundles[0].ID(), st.Transfers[1].BundleID)
}

func TestVaultRollRewrite(t *testing.T) {
	oldMaturity := uint64(testTimestamp + 86400*30)
	newMaturity := uint64(testTimestamp + 86400*120)
	b := &tb{}

	st := absorbAll(t, []*domain.Transfer{
		b.burn(domain.TokenTypeVaultDebt, alice, domain.SystemAccountNone, -100e8, oldMaturity),
		b.burn(domain.TokenTypeVaultShare, alice, domain.SystemAccountNone, 50e8, oldMaturity),
		b.mint(domain.TokenTypeVaultDebt, alice, domain.SystemAccountNone, -110e8, newMaturity),
		b.mint(domain.TokenTypeVaultShare, alice, domain.SystemAccountNone, 50e8, newMaturity),
	})

	// The Vault Exit matched on the first pair is absorbed into the roll.
	require.Equal(t, []domain.BundleKind{domain.BundleVaultRoll}, bundleKinds(st))
	assert.Len(t, st.Bundles[0].Transfers, 4)
}

func TestVaultSettleRewrite(t *testing.T) {
	oldMaturity := uint64(testTimestamp - 3600)
	b := &tb{}

	st := absorbAll(t, []*domain.Transfer{
		b.burn(domain.TokenTypeVaultDebt, alice, domain.SystemAccountNone, -100e8, oldMaturity),
		b.burn(domain.TokenTypeVaultShare, alice, domain.SystemAccountNone, 50e8, oldMaturity),
		b.mint(domain.TokenTypeVaultDebt, alice, domain.SystemAccountNone, -100e8, domain.PrimeCashVaultMaturity),
		b.mint(domain.TokenTypeVaultShare, alice, domain.SystemAccountNone, 50e8, domain.PrimeCashVaultMaturity),
	})

	require.Equal(t, []domain.BundleKind{domain.BundleVaultSettle}, bundleKinds(st))
	assert.Len(t, st.Bundles[0].Transfers, 4)
}

func TestVaultLiquidations(t *testing.T) {
	fCashMaturity := uint64(testTimestamp + 86400*90)

	t.Run("liquidate cash", func(t *testing.T) {
		b := &tb{}
		st := absorbAll(t, []*domain.Transfer{
			b.transfer(domain.TokenTypeVaultCash, alice, bob, domain.SystemAccountNone, domain.SystemAccountNone, 100e8, fCashMaturity),
			b.burn(domain.TokenTypeFCash, bob, domain.SystemAccountNone, 100e8, fCashMaturity),
			b.burn(domain.TokenTypeVaultDebt, alice, domain.SystemAccountNone, -100e8, fCashMaturity),
			b.burn(domain.TokenTypeVaultCash, alice, domain.SystemAccountNone, 100e8, fCashMaturity),
		})
		require.Len(t, st.Bundles, 1)
		assert.Equal(t, domain.BundleVaultLiquidateCash, st.Bundles[0].Kind)
		assert.Len(t, st.Bundles[0].Transfers, 4)
	})

	t.Run("liquidate excess cash", func(t *testing.T) {
		b := &tb{}
		st := absorbAll(t, []*domain.Transfer{
			b.transfer(domain.TokenTypeVaultCash, vaultAddr, bob, domain.SystemAccountVault, domain.SystemAccountNone, 100e8, domain.PrimeCashVaultMaturity),
			b.burn(domain.TokenTypeVaultCash, bob, domain.SystemAccountNone, 100e8, domain.PrimeCashVaultMaturity),
			b.burn(domain.TokenTypeVaultCash, alice, domain.SystemAccountNone, 100e8, domain.PrimeCashVaultMaturity),
			b.mint(domain.TokenTypePrimeCash, bob, domain.SystemAccountNone, 100e8, 0),
			b.transfer(domain.TokenTypePrimeCash, bob, vaultAddr, domain.SystemAccountNone, domain.SystemAccountVault, 100e8, 0),
			b.mint(domain.TokenTypeVaultCash, alice, domain.SystemAccountNone, 100e8, domain.PrimeCashVaultMaturity),
		})
		require.Len(t, st.Bundles, 1)
		assert.Equal(t, domain.BundleVaultLiquidateExcessCash, st.Bundles[0].Kind)
		assert.Len(t, st.Bundles[0].Transfers, 6)
	})
}

func TestUnmatchedTransferStaysPending(t *testing.T) {
	fCashMaturity := uint64(testTimestamp + 86400*90)
	b := &tb{}
	st := NewState()

	created, err := st.Absorb(b.mint(domain.TokenTypeFCash, alice, domain.SystemAccountNone, -100e8, fCashMaturity))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, st.Pending(), 1)
	assert.Empty(t, st.Bundles)
}

func TestMultipleBundlesInOneTransaction(t *testing.T) {
	b := &tb{}
	st := absorbAll(t, []*domain.Transfer{
		b.mint(domain.TokenTypePrimeCash, alice, domain.SystemAccountNone, 100e8, 0),
		b.transfer(domain.TokenTypePrimeCash, alice, nToken, domain.SystemAccountNone, domain.SystemAccountNToken, 100e8, 0),
		b.mint(domain.TokenTypeNToken, alice, domain.SystemAccountNone, 95e8, 0),
	})

	require.Equal(t, []domain.BundleKind{domain.BundleDeposit, domain.BundleMintNToken}, bundleKinds(st))
}

func TestTableOrderDisambiguates(t *testing.T) {
	// A transfer from the settlement reserve to the nToken satisfies both
	// settle-cash shapes; the nToken entry sits earlier in the table.
	b := &tb{}
	st := absorbAll(t, []*domain.Transfer{
		b.transfer(domain.TokenTypePrimeCash, settleRes, nToken, domain.SystemAccountSettlementReserve, domain.SystemAccountNToken, 100e8, 0),
	})
	require.Len(t, st.Bundles, 1)
	assert.Equal(t, domain.BundleSettleCashNToken, st.Bundles[0].Kind)
}

func TestWindowCoverageIsExact(t *testing.T) {
	// Two pending transfers never satisfy a one-transfer criterion, even if
	// the head transfer alone would match it.
	fCashMaturity := uint64(testTimestamp + 86400*90)
	b := &tb{}
	st := NewState()

	_, err := st.Absorb(b.mint(domain.TokenTypeFCash, alice, domain.SystemAccountNone, -100e8, fCashMaturity))
	require.NoError(t, err)
	created, err := st.Absorb(b.transfer(domain.TokenTypeNToken, alice, bob, domain.SystemAccountNone, domain.SystemAccountNone, 1e8, 0))
	require.NoError(t, err)

	assert.False(t, created)
	assert.Len(t, st.Pending(), 2)
}

func TestBundleSpansAreDisjointAndOrdered(t *testing.T) {
	fCashMaturity := uint64(testTimestamp + 86400*90)
	b := &tb{}
	st := absorbAll(t, []*domain.Transfer{
		b.mint(domain.TokenTypePrimeCash, alice, domain.SystemAccountNone, 100e8, 0),
		b.transfer(domain.TokenTypePrimeCash, alice, nToken, domain.SystemAccountNone, domain.SystemAccountNToken, 98e8, 0),
		b.transfer(domain.TokenTypePrimeCash, alice, feeRes, domain.SystemAccountNone, domain.SystemAccountFeeReserve, 1e7, 0),
		b.mint(domain.TokenTypeFCash, alice, domain.SystemAccountNone, 100e8, fCashMaturity),
		b.burn(domain.TokenTypePrimeCash, alice, domain.SystemAccountNone, 2e8, 0),
	})

	require.NotEmpty(t, st.Bundles)
	for i := 1; i < len(st.Bundles); i++ {
		assert.Greater(t, st.Bundles[i].StartLogIndex, st.Bundles[i-1].EndLogIndex)
	}
	for _, bundle := range st.Bundles {
		assert.LessOrEqual(t, bundle.StartLogIndex, bundle.EndLogIndex)
		for _, tr := range bundle.Transfers {
			assert.Equal(t, bundle.ID(), tr.BundleID)
		}
	}
}
