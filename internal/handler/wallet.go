package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"villagelink/internal/domain"
	"villagelink/internal/service"
)

const defaultTransactionLimit = 50

// WalletHandler handles HTTP requests for token wallets.
type WalletHandler struct {
	walletService *service.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletService *service.WalletService) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

// TransferRequest is the HTTP request body for a wallet transfer.
type TransferRequest struct {
	From            string `json:"from"`
	To              string `json:"to"`
	Amount          int64  `json:"amount"`
	Reason          string `json:"reason,omitempty"`
	RelatedEntityID string `json:"related_entity_id,omitempty"`
}

// AdjustRequest is the HTTP request body for earn and spend.
type AdjustRequest struct {
	Amount          int64  `json:"amount"`
	Description     string `json:"description,omitempty"`
	RelatedEntityID string `json:"related_entity_id,omitempty"`
}

// WalletResponse is the HTTP response for wallet data.
type WalletResponse struct {
	OwnerID      string                `json:"owner_id"`
	Balance      int64                 `json:"balance"`
	CreatedAt    string                `json:"created_at"`
	UpdatedAt    string                `json:"updated_at"`
	Transactions []TransactionResponse `json:"transactions,omitempty"`
}

// TransactionResponse is the HTTP response for one wallet transaction.
type TransactionResponse struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Amount          int64  `json:"amount"`
	Description     string `json:"description,omitempty"`
	RelatedEntityID string `json:"related_entity_id,omitempty"`
	Timestamp       string `json:"timestamp"`
}

// TransferResponse is the HTTP response for a transfer. A rejected transfer
// is reported with success false and a reason.
type TransferResponse struct {
	Success    bool            `json:"success"`
	Reason     string          `json:"reason,omitempty"`
	From       *WalletResponse `json:"from,omitempty"`
	To         *WalletResponse `json:"to,omitempty"`
	BlockIndex *int64          `json:"block_index,omitempty"`
	BlockHash  string          `json:"block_hash,omitempty"`
}

func toWalletResponse(w *domain.Wallet) *WalletResponse {
	if w == nil {
		return nil
	}
	return &WalletResponse{
		OwnerID:   w.OwnerID,
		Balance:   w.Balance,
		CreatedAt: w.CreatedAt.Format(time.RFC3339),
		UpdatedAt: w.UpdatedAt.Format(time.RFC3339),
	}
}

// Open handles POST /v1/wallets/:id
func (h *WalletHandler) Open(c *gin.Context) {
	w, err := h.walletService.EnsureWallet(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toWalletResponse(w))
}

// GetWallet handles GET /v1/wallets/:id
func (h *WalletHandler) GetWallet(c *gin.Context) {
	ownerID := c.Param("id")
	limit, ok := queryInt(c, "limit", defaultTransactionLimit)
	if !ok {
		return
	}

	w, err := h.walletService.GetWallet(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}
	txs, err := h.walletService.Transactions(c.Request.Context(), ownerID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := toWalletResponse(w)
	for _, tx := range txs {
		response.Transactions = append(response.Transactions, TransactionResponse{
			ID:              tx.ID,
			Type:            string(tx.Type),
			Amount:          tx.Amount,
			Description:     tx.Description,
			RelatedEntityID: tx.RelatedEntityID,
			Timestamp:       tx.Timestamp.Format(time.RFC3339),
		})
	}
	respondJSON(c, http.StatusOK, response)
}

// Transfer handles POST /v1/wallets/transfer
func (h *WalletHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.walletService.Transfer(c.Request.Context(), service.TransferRequest{
		From:            req.From,
		To:              req.To,
		Amount:          req.Amount,
		Reason:          req.Reason,
		RelatedEntityID: req.RelatedEntityID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response := TransferResponse{
		Success: result.Success,
		Reason:  result.Reason,
		From:    toWalletResponse(result.From),
		To:      toWalletResponse(result.To),
	}
	if result.Block != nil {
		idx := result.Block.Index
		response.BlockIndex = &idx
		response.BlockHash = result.Block.Hash
	}
	respondJSON(c, http.StatusOK, response)
}

// Earn handles POST /v1/wallets/:id/earn
func (h *WalletHandler) Earn(c *gin.Context) {
	h.adjust(c, h.walletService.Earn)
}

// Spend handles POST /v1/wallets/:id/spend
func (h *WalletHandler) Spend(c *gin.Context) {
	h.adjust(c, h.walletService.Spend)
}

type adjustFunc func(ctx context.Context, ownerID string, amount int64, description, relatedID string) (*domain.Wallet, error)

func (h *WalletHandler) adjust(c *gin.Context, fn adjustFunc) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	w, err := fn(c.Request.Context(), c.Param("id"), req.Amount, req.Description, req.RelatedEntityID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toWalletResponse(w))
}
