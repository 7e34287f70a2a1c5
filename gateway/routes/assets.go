package routes

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type assetEntry struct {
	Asset            string `json:"asset"`
	Symbol           string `json:"symbol"`
	Decimals         uint8  `json:"decimals"`
	HeartbeatSeconds int64  `json:"heartbeatSeconds"`
}

func (h *handlers) listAssets(w http.ResponseWriter, _ *http.Request) {
	assets := h.engine.Registry().Assets()
	out := make([]assetEntry, 0, len(assets))
	for _, entry := range assets {
		out = append(out, assetEntry{
			Asset:            entry.Address.Hex(),
			Symbol:           entry.Symbol,
			Decimals:         entry.Decimals,
			HeartbeatSeconds: int64(entry.Heartbeat.Seconds()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": out})
}

// assetPrice quotes the USD value of one whole token, honouring the oracle
// safety checks. Stale or unavailable prices surface as 503 rather than a
// last-known value.
func (h *handlers) assetPrice(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	entry, ok := h.engine.Registry().Asset(asset)
	if !ok {
		writeJSONError(w, http.StatusNotFound, errAssetUnknown)
		return
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(entry.Decimals)), nil)
	value, err := h.engine.USDValue(asset, unit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":        entry.Address.Hex(),
		"symbol":       entry.Symbol,
		"unitValueUsd": value.String(),
	})
}

func (h *handlers) totalSupply(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"totalDebtSupply": h.engine.TotalDebtSupply().String(),
	})
}
