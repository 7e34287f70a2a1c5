package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"stablemint/native/susd"
)

const requestLimit = 1 << 20 // 1 MiB

type handlers struct {
	engine *susd.Engine
}

// Amounts travel as base-10 strings of the token's smallest unit so callers
// never lose precision to JSON numbers.

type depositRequest struct {
	User   string `json:"user"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type mintRequest struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

type pairedRequest struct {
	User       string `json:"user"`
	Asset      string `json:"asset"`
	Collateral string `json:"collateral"`
	Debt       string `json:"debt"`
}

type collateralEntry struct {
	Asset    string `json:"asset"`
	Symbol   string `json:"symbol"`
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

type positionResponse struct {
	User         string            `json:"user"`
	Debt         string            `json:"debt"`
	Collateral   []collateralEntry `json:"collateral"`
	HealthFactor string            `json:"healthFactor,omitempty"`
}

func (h *handlers) deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	user, asset, amount, err := parseDeposit(req)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.engine.Deposit(user, asset, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	h.writePosition(w, user)
}

func (h *handlers) mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	user, err := parseAddress("user", req.User)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.engine.Mint(user, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	h.writePosition(w, user)
}

func (h *handlers) depositAndMint(w http.ResponseWriter, r *http.Request) {
	var req pairedRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	user, asset, collateral, debt, err := parsePaired(req)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.engine.DepositAndMint(user, asset, collateral, debt); err != nil {
		writeEngineError(w, err)
		return
	}
	h.writePosition(w, user)
}

func (h *handlers) burn(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	user, err := parseAddress("user", req.User)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.engine.Burn(user, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	h.writePosition(w, user)
}

func (h *handlers) redeem(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	user, asset, amount, err := parseDeposit(req)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.engine.Redeem(user, asset, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	h.writePosition(w, user)
}

func (h *handlers) redeemForDebt(w http.ResponseWriter, r *http.Request) {
	var req pairedRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	user, asset, collateral, debt, err := parsePaired(req)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.engine.RedeemForDebt(user, asset, collateral, debt); err != nil {
		writeEngineError(w, err)
		return
	}
	h.writePosition(w, user)
}

func (h *handlers) getPosition(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	h.writePosition(w, user)
}

// writePosition renders the account snapshot. The health factor is omitted
// rather than failing the whole response when prices are unavailable.
func (h *handlers) writePosition(w http.ResponseWriter, user common.Address) {
	resp := positionResponse{
		User: user.Hex(),
		Debt: h.engine.DebtOf(user).String(),
	}
	for _, entry := range h.engine.Registry().Assets() {
		amount := h.engine.CollateralOf(user, entry.Address)
		resp.Collateral = append(resp.Collateral, collateralEntry{
			Asset:    entry.Address.Hex(),
			Symbol:   entry.Symbol,
			Amount:   amount.String(),
			Decimals: entry.Decimals,
		})
	}
	if factor, err := h.engine.HealthFactor(user); err == nil {
		resp.HealthFactor = factor.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseDeposit(req depositRequest) (common.Address, common.Address, *big.Int, error) {
	user, err := parseAddress("user", req.User)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	return user, asset, amount, nil
}

func parsePaired(req pairedRequest) (common.Address, common.Address, *big.Int, *big.Int, error) {
	user, err := parseAddress("user", req.User)
	if err != nil {
		return common.Address{}, common.Address{}, nil, nil, err
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		return common.Address{}, common.Address{}, nil, nil, err
	}
	collateral, err := parseAmount("collateral", req.Collateral)
	if err != nil {
		return common.Address{}, common.Address{}, nil, nil, err
	}
	debt, err := parseAmount("debt", req.Debt)
	if err != nil {
		return common.Address{}, common.Address{}, nil, nil, err
	}
	return user, asset, collateral, debt, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("%s is required", field)
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, raw)
	}
	return amount, nil
}

func decodeRequest(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, requestLimit))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
