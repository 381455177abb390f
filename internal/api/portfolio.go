package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/storage"
)

type createPortfolioRequest struct {
	ListingID     int64    `json:"listing_id"`
	Status        string   `json:"status"`
	PurchasePrice *float64 `json:"purchase_price"`
	Notes         string   `json:"notes"`
}

type updatePortfolioRequest struct {
	Status           *string  `json:"status"`
	PurchasePrice    *float64 `json:"purchase_price"`
	ActualRenoCost   *float64 `json:"actual_reno_cost"`
	ActualSalePrice  *float64 `json:"actual_sale_price"`
	ActualWeeklyRent *float64 `json:"actual_weekly_rent"`
	Notes            *string  `json:"notes"`
}

func handleListPortfolio(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := deps.Store.ListPortfolio(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to list portfolio: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleCreatePortfolio(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createPortfolioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "invalid request body: %v", err)
			return
		}
		if req.ListingID <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request", "listing_id is required")
			return
		}
		status, err := listing.ParsePortfolioStatus(req.Status)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "%v", err)
			return
		}

		e := &listing.PortfolioEntry{
			ListingID:     req.ListingID,
			Status:        status,
			PurchasePrice: req.PurchasePrice,
			Notes:         req.Notes,
		}
		err = deps.Store.CreatePortfolioEntry(r.Context(), e)
		if errors.Is(err, storage.ErrAlreadyTracked) {
			httpError(w, http.StatusConflict, "conflict", "listing %d is already in the portfolio", req.ListingID)
			return
		}
		if err != nil {
			lookupError(w, err, "listing")
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

func handleGetPortfolio(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		e, err := deps.Store.GetPortfolioEntry(r.Context(), id)
		if err != nil {
			lookupError(w, err, "portfolio entry")
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func handleUpdatePortfolio(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req updatePortfolioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "invalid request body: %v", err)
			return
		}
		u := listing.PortfolioUpdate{
			PurchasePrice:    req.PurchasePrice,
			ActualRenoCost:   req.ActualRenoCost,
			ActualSalePrice:  req.ActualSalePrice,
			ActualWeeklyRent: req.ActualWeeklyRent,
			Notes:            req.Notes,
		}
		if req.Status != nil {
			status, err := listing.ParsePortfolioStatus(*req.Status)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request", "%v", err)
				return
			}
			u.Status = &status
		}

		e, err := deps.Store.UpdatePortfolioEntry(r.Context(), id, u)
		if err != nil {
			lookupError(w, err, "portfolio entry")
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func handleDeletePortfolio(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := deps.Store.DeletePortfolioEntry(r.Context(), id); err != nil {
			lookupError(w, err, "portfolio entry")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
