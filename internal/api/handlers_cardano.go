package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/chain-ledger/internal/adapter"
	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/types"
)

const (
	defaultDailyLimit = 31
	maxDailyLimit     = 3660
)

// DailyResponse is one page of the daily snapshot stream
type DailyResponse struct {
	Account   string                `json:"account"`
	Snapshots []types.DailySnapshot `json:"snapshots"`
	// Complete is true once the walk reached the oldest snapshot. It stays
	// false when exactly limit snapshots exist, since no snapshot past the
	// limit is computed.
	Complete bool `json:"complete"`
}

// RewardsResponse lists the rewards of one stake key
type RewardsResponse struct {
	Stake   string           `json:"stake"`
	Rewards []adapter.Reward `json:"rewards"`
}

// WalletRewards is the reward history of one registered stake key
type WalletRewards struct {
	types.RewardWallet
	Rewards []adapter.Reward `json:"rewards"`
}

// EpochsResponse is the reward epoch range of a calendar month
type EpochsResponse struct {
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	First      int       `json:"first"`
	Last       int       `json:"last"`
	FirstStart time.Time `json:"firstStart"`
	LastStart  time.Time `json:"lastStart"`
}

// handleCardanoDaily handles GET /api/cardano/{account}/daily?limit=N
// Only as many snapshots as requested are computed.
func (s *Server) handleCardanoDaily(w http.ResponseWriter, r *http.Request) {
	if s.deps.Daily == nil {
		respondUnavailable(w, "cardano daily report")
		return
	}
	account := mux.Vars(r)["account"]

	limit := defaultDailyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondServiceError(w, r, errors.NewInvalidParameterError("limit", "must be a positive integer"))
			return
		}
		if n > maxDailyLimit {
			n = maxDailyLimit
		}
		limit = n
	}

	src, err := s.deps.Daily(r.Context(), account)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	it, err := s.deps.Snapshots.Generate(r.Context(), src)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := DailyResponse{Account: account, Snapshots: make([]types.DailySnapshot, 0, limit)}
	for len(resp.Snapshots) < limit {
		snap, ok, err := it.Next(r.Context())
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		if !ok {
			resp.Complete = true
			break
		}
		resp.Snapshots = append(resp.Snapshots, snap)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleRewards handles GET /api/cardano/{stake}/rewards
func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rewards == nil {
		respondUnavailable(w, "cardano rewards")
		return
	}
	stake := mux.Vars(r)["stake"]

	rewards, err := s.deps.Rewards.RewardHistory(r.Context(), stake)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if rewards == nil {
		rewards = []adapter.Reward{}
	}

	respondJSON(w, http.StatusOK, RewardsResponse{Stake: stake, Rewards: rewards})
}

// handleRegisteredRewards handles GET /api/cardano/rewards for every stake
// key in the reward wallet table. One failing wallet fails the response.
func (s *Server) handleRegisteredRewards(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rewards == nil || s.deps.RewardWallets == nil {
		respondUnavailable(w, "cardano rewards")
		return
	}

	wallets, err := s.deps.RewardWallets.RewardWallets(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	out := make([]WalletRewards, 0, len(wallets))
	for _, wallet := range wallets {
		rewards, err := s.deps.Rewards.RewardHistory(r.Context(), wallet.StakeAddress)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		if rewards == nil {
			rewards = []adapter.Reward{}
		}
		out = append(out, WalletRewards{RewardWallet: wallet, Rewards: rewards})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"wallets": out})
}

// handleEpochs handles GET /api/cardano/epochs?year=&month=
func (s *Server) handleEpochs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil || year < 1970 {
		respondServiceError(w, r, errors.NewInvalidParameterError("year", "must be a calendar year"))
		return
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil || month < 1 || month > 12 {
		respondServiceError(w, r, errors.NewInvalidParameterError("month", "must be between 1 and 12"))
		return
	}

	epochs := adapter.EpochsForMonth(year, time.Month(month))
	respondJSON(w, http.StatusOK, EpochsResponse{
		Year:       year,
		Month:      month,
		First:      epochs.First,
		Last:       epochs.Last,
		FirstStart: adapter.EpochStart(epochs.First),
		LastStart:  adapter.EpochStart(epochs.Last),
	})
}
