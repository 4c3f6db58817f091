package api

import (
	"io"
	"net/http"

	"github.com/chain-ledger/internal/adapter"
	"github.com/chain-ledger/internal/storage"
	"github.com/chain-ledger/internal/types"
)

const maxAddressBookBytes = 4 << 20

// handleBuildPortfolio handles POST /api/portfolio with the address book in the body
func (s *Server) handleBuildPortfolio(w http.ResponseWriter, r *http.Request) {
	if s.deps.Portfolio == nil {
		respondUnavailable(w, "portfolio service")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxAddressBookBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	book, err := storage.ParseAddressBook(raw)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	s.respondReport(w, r, book)
}

// handleStoredPortfolio handles GET /api/portfolio using the configured address book
func (s *Server) handleStoredPortfolio(w http.ResponseWriter, r *http.Request) {
	if s.deps.Portfolio == nil || s.deps.AddressBook == nil {
		respondUnavailable(w, "portfolio service")
		return
	}

	book, err := s.deps.AddressBook.Load(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	s.respondReport(w, r, book)
}

func (s *Server) respondReport(w http.ResponseWriter, r *http.Request, book types.AddressBook) {
	report, err := s.deps.Portfolio.BuildReport(r.Context(), book)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// handleCopperWallets handles GET /api/copper/wallets
func (s *Server) handleCopperWallets(w http.ResponseWriter, r *http.Request) {
	if s.deps.Copper == nil {
		respondUnavailable(w, "copper client")
		return
	}

	wallets, err := s.deps.Copper.Wallets(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if wallets == nil {
		wallets = []adapter.CopperWallet{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"wallets": wallets})
}
