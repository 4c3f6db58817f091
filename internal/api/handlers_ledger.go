package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/types"
)

// LedgerResponse is the body of a ledger request
type LedgerResponse struct {
	Category types.Category    `json:"category"`
	Account  string            `json:"account"`
	Order    string            `json:"order"`
	Rows     []types.LedgerRow `json:"rows"`
}

// handleLedger handles GET /api/ledger/{category}/{account}?order=asc|desc
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		respondUnavailable(w, "ledger service")
		return
	}

	vars := mux.Vars(r)
	category := types.Category(vars["category"])
	account := vars["account"]

	order := r.URL.Query().Get("order")
	switch order {
	case "":
		order = "asc"
	case "asc", "desc":
	default:
		respondServiceError(w, r, errors.NewInvalidParameterError("order", "must be asc or desc"))
		return
	}

	rows, err := s.deps.Ledger.BuildLedger(r.Context(), category, account, order == "desc")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if rows == nil {
		rows = []types.LedgerRow{}
	}

	respondJSON(w, http.StatusOK, LedgerResponse{
		Category: category,
		Account:  account,
		Order:    order,
		Rows:     rows,
	})
}
