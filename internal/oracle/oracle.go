// Package oracle serves pre-decoded on-chain observations: exchange rates,
// settlement rates, interest rates and reward accumulators. A missing entry
// means the value was unavailable at decode time; consumers skip the
// dependent computation.
package oracle

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/pnltrace/internal/domain"
)

// Oracle answers valuation and incentive queries from static observation
// maps. Read-only after Load.
type Oracle struct {
	// rates are underlying raw units per whole token, so a conversion is
	// amount * rate / token precision.
	rates           map[domain.TokenID]*big.Int
	settlementRates map[domain.TokenID]*big.Int
	interestRates   map[domain.TokenID]*big.Int

	incentiveDebts map[string]*big.Int // account:currencyID
	rewardDebts    map[string]*big.Int // account:rewardID
	accumulators   map[string]*big.Int // yieldTokenID:rewardID
}

type observationsFile struct {
	Rates           map[string]string `json:"rates"`
	SettlementRates map[string]string `json:"settlement_rates"`
	InterestRates   map[string]string `json:"interest_rates"`
	IncentiveDebts  map[string]string `json:"incentive_debts"`
	RewardDebts     map[string]string `json:"reward_debts"`
	Accumulators    map[string]string `json:"reward_accumulators"`
}

// Load reads an observations file. All amounts are decimal strings in raw
// units.
func Load(path string) (*Oracle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read observations file")
	}

	var file observationsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrap(err, "decode observations file")
	}

	o := New()
	if o.rates, err = parseTokenMap(file.Rates); err != nil {
		return nil, errors.Wrap(err, "rates")
	}
	if o.settlementRates, err = parseTokenMap(file.SettlementRates); err != nil {
		return nil, errors.Wrap(err, "settlement_rates")
	}
	if o.interestRates, err = parseTokenMap(file.InterestRates); err != nil {
		return nil, errors.Wrap(err, "interest_rates")
	}
	if o.incentiveDebts, err = parseKeyMap(file.IncentiveDebts); err != nil {
		return nil, errors.Wrap(err, "incentive_debts")
	}
	if o.rewardDebts, err = parseKeyMap(file.RewardDebts); err != nil {
		return nil, errors.Wrap(err, "reward_debts")
	}
	if o.accumulators, err = parseKeyMap(file.Accumulators); err != nil {
		return nil, errors.Wrap(err, "reward_accumulators")
	}

	return o, nil
}

// New returns an empty oracle; every query reports unavailable.
func New() *Oracle {
	return &Oracle{
		rates:           map[domain.TokenID]*big.Int{},
		settlementRates: map[domain.TokenID]*big.Int{},
		interestRates:   map[domain.TokenID]*big.Int{},
		incentiveDebts:  map[string]*big.Int{},
		rewardDebts:     map[string]*big.Int{},
		accumulators:    map[string]*big.Int{},
	}
}

func (o *Oracle) ConvertToUnderlying(amount *big.Int, token domain.Token, at uint64) (*big.Int, bool) {
	rate, ok := o.rates[token.ID]
	if !ok || token.Precision == nil || token.Precision.Sign() == 0 {
		return nil, false
	}
	value := new(big.Int).Mul(amount, rate)
	return value.Quo(value, token.Precision), true
}

func (o *Oracle) SettlementValue(token domain.Token, amount *big.Int) (*big.Int, bool) {
	rate, ok := o.settlementRates[token.ID]
	if !ok || token.Precision == nil || token.Precision.Sign() == 0 {
		return nil, false
	}
	value := new(big.Int).Mul(amount, rate)
	return value.Quo(value, token.Precision), true
}

func (o *Oracle) LatestInterestRate(token domain.Token) (*big.Int, bool) {
	rate, ok := o.interestRates[token.ID]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(rate), true
}

func (o *Oracle) AccountIncentiveDebt(account common.Address, currencyID uint16) (*big.Int, bool) {
	debt, ok := o.incentiveDebts[strings.ToLower(fmt.Sprintf("%s:%d", account.Hex(), currencyID))]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(debt), true
}

func (o *Oracle) RewardDebt(account common.Address, reward domain.Token) (*big.Int, bool) {
	debt, ok := o.rewardDebts[strings.ToLower(fmt.Sprintf("%s:%s", account.Hex(), reward.ID))]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(debt), true
}

func (o *Oracle) AccumulatedRewardPerUnit(yieldToken, reward domain.Token) (*big.Int, bool) {
	acc, ok := o.accumulators[strings.ToLower(fmt.Sprintf("%s:%s", yieldToken.ID, reward.ID))]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(acc), true
}

func parseTokenMap(in map[string]string) (map[domain.TokenID]*big.Int, error) {
	out := make(map[domain.TokenID]*big.Int, len(in))
	for key, value := range in {
		v, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q for %q", value, key)
		}
		out[domain.TokenID(key)] = v
	}
	return out, nil
}

func parseKeyMap(in map[string]string) (map[string]*big.Int, error) {
	out := make(map[string]*big.Int, len(in))
	for key, value := range in {
		v, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q for %q", value, key)
		}
		out[strings.ToLower(key)] = v
	}
	return out, nil
}
