package adapter

import (
	"context"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/stream"
	"github.com/chain-ledger/internal/types"
)

// Epoch 571 is the reference point of the epoch arithmetic
const (
	anchorEpoch    = 571
	secondsInEpoch = 432000
)

var anchorEpochStart = time.Date(2025, time.July, 18, 21, 44, 51, 0, time.UTC)

// EpochStart returns the start time of epoch n
func EpochStart(n int) time.Time {
	return anchorEpochStart.Add(time.Duration(n-anchorEpoch) * secondsInEpoch * time.Second)
}

// EpochForTime returns the epoch running at t
func EpochForTime(t time.Time) int {
	secs := t.Unix() - anchorEpochStart.Unix()
	// floor division for times before the anchor
	q := secs / secondsInEpoch
	if secs%secondsInEpoch < 0 {
		q--
	}
	return int(q) + anchorEpoch
}

// EpochRange is an inclusive range of epochs
type EpochRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// EpochsForMonth returns the reward epochs reported for a UTC calendar
// month: each end is the epoch running at the month boundary plus one.
func EpochsForMonth(year int, month time.Month) EpochRange {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return EpochRange{
		First: EpochForTime(start) + 1,
		Last:  EpochForTime(end) + 1,
	}
}

// Reward is one staking reward of a stake key
type Reward struct {
	Epoch      int             `json:"epoch"`
	EpochStart time.Time       `json:"epochStart"`
	Amount     decimal.Decimal `json:"amount"`
	PoolID     string          `json:"poolId"`
	Type       string          `json:"type,omitempty"`
}

type blockfrostReward struct {
	Epoch  int    `json:"epoch"`
	Amount string `json:"amount"`
	PoolID string `json:"pool_id"`
	Type   string `json:"type"`
}

// RewardHistory returns the staking rewards of stake, newest epoch first
func (a *CardanoAdapter) RewardHistory(ctx context.Context, stake string) ([]Reward, error) {
	if !isStakeKey(stake) {
		return nil, errors.NewInvalidAccountError(stake, "rewards require a stake key")
	}

	it := blockfrostPaged[blockfrostReward](a.client,
		"/accounts/"+url.PathEscape(stake)+"/rewards",
		url.Values{"order": {"desc"}},
		"blockfrost/accounts/rewards")
	raw, err := stream.Collect(ctx, it)
	if err != nil {
		return nil, err
	}

	rewards := make([]Reward, 0, len(raw))
	for _, r := range raw {
		amount, err := types.FromBaseUnits(r.Amount, types.DecimalsADA)
		if err != nil {
			skipRecord(ctx, types.CategoryADA, stake, "invalid reward amount")
			continue
		}
		rewards = append(rewards, Reward{
			Epoch:      r.Epoch,
			EpochStart: EpochStart(r.Epoch),
			Amount:     amount,
			PoolID:     r.PoolID,
			Type:       r.Type,
		})
	}
	return rewards, nil
}
