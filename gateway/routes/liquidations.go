package routes

import "net/http"

type liquidationRequest struct {
	Liquidator  string `json:"liquidator"`
	User        string `json:"user"`
	Asset       string `json:"asset"`
	DebtToCover string `json:"debtToCover"`
}

type liquidationResponse struct {
	Liquidator       string `json:"liquidator"`
	User             string `json:"user"`
	Asset            string `json:"asset"`
	DebtCovered      string `json:"debtCovered"`
	CollateralSeized string `json:"collateralSeized"`
}

func (h *handlers) liquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidationRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	liquidator, err := parseAddress("liquidator", req.Liquidator)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	user, err := parseAddress("user", req.User)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	debtToCover, err := parseAmount("debtToCover", req.DebtToCover)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	seized, err := h.engine.Liquidate(liquidator, user, asset, debtToCover)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, liquidationResponse{
		Liquidator:       liquidator.Hex(),
		User:             user.Hex(),
		Asset:            asset.Hex(),
		DebtCovered:      debtToCover.String(),
		CollateralSeized: seized.String(),
	})
}
