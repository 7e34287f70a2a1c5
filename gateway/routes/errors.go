package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"stablemint/native/susd"
	"stablemint/oracle"
)

var errAssetUnknown = errors.New("asset not registered")

// writeEngineError maps the engine's error taxonomy onto HTTP statuses:
// caller mistakes are 400, solvency and liquidation refusals are 409,
// oracle outages are 503, and token-layer failures are 502.
func writeEngineError(w http.ResponseWriter, err error) {
	writeJSONError(w, engineStatus(err), err)
}

func engineStatus(err error) int {
	switch {
	case errors.Is(err, susd.ErrInvalidAmount),
		errors.Is(err, susd.ErrAssetNotRegistered):
		return http.StatusBadRequest
	case errors.Is(err, susd.ErrBrokenHealthFactor),
		errors.Is(err, susd.ErrGoodHealthFactor),
		errors.Is(err, susd.ErrNotImprovedHealthFactor),
		errors.Is(err, susd.ErrExcessDebtToCover),
		errors.Is(err, susd.ErrExcessCollateralToRedeem):
		return http.StatusConflict
	case errors.Is(err, oracle.ErrSequencerDown),
		errors.Is(err, oracle.ErrGracePeriodNotOver),
		errors.Is(err, oracle.ErrStalePrice),
		errors.Is(err, oracle.ErrIncompleteRound),
		errors.Is(err, susd.ErrReentrantCall):
		return http.StatusServiceUnavailable
	case errors.Is(err, susd.ErrTransferFailed),
		errors.Is(err, susd.ErrMintFailed),
		errors.Is(err, susd.ErrBurnFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil && err.Error() != "" {
		message = err.Error()
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
