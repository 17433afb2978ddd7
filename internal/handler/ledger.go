package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"villagelink/internal/domain"
	"villagelink/internal/service"
)

const defaultBlockLimit = 100

// LedgerHandler handles HTTP requests for the ledger chain.
type LedgerHandler struct {
	chain *service.LedgerChain
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(chain *service.LedgerChain) *LedgerHandler {
	return &LedgerHandler{chain: chain}
}

// AddBlockRequest is the HTTP request body for appending a block.
type AddBlockRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// BlockResponse is the HTTP response for a ledger block.
type BlockResponse struct {
	Index        int64           `json:"index"`
	Timestamp    int64           `json:"timestamp"`
	Payload      json.RawMessage `json:"payload"`
	PreviousHash string          `json:"previous_hash"`
	Hash         string          `json:"hash"`
	Validator    string          `json:"validator"`
}

// VerifyResponse is the HTTP response for a chain verification.
type VerifyResponse struct {
	Valid         bool   `json:"valid"`
	CheckedBlocks int64  `json:"checked_blocks"`
	BrokenAt      *int64 `json:"broken_at,omitempty"`
	TrustedUntil  int64  `json:"trusted_until"`
	Reason        string `json:"reason,omitempty"`
}

func toBlockResponse(b *domain.LedgerBlock) BlockResponse {
	return BlockResponse{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		Payload:      b.Payload,
		PreviousHash: b.PreviousHash,
		Hash:         b.Hash,
		Validator:    b.Validator,
	}
}

// AddBlock handles POST /v1/ledger/blocks
func (h *LedgerHandler) AddBlock(c *gin.Context) {
	var req AddBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Payload) == 0 {
		respondError(c, service.ErrEmptyPayload)
		return
	}

	block, err := h.chain.AddBlock(c.Request.Context(), req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toBlockResponse(block))
}

// ListBlocks handles GET /v1/ledger/blocks?from=&limit=
func (h *LedgerHandler) ListBlocks(c *gin.Context) {
	from, ok := queryInt(c, "from", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", defaultBlockLimit)
	if !ok {
		return
	}

	blocks, err := h.chain.Blocks(c.Request.Context(), int64(from), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]BlockResponse, 0, len(blocks))
	for _, b := range blocks {
		response = append(response, toBlockResponse(b))
	}
	respondJSON(c, http.StatusOK, response)
}

// Verify handles GET /v1/ledger/verify. A broken chain answers 409 with the
// report.
func (h *LedgerHandler) Verify(c *gin.Context) {
	report, err := h.chain.Verify(c.Request.Context())
	if err != nil && !errors.Is(err, service.ErrChainIntegrity) {
		respondError(c, err)
		return
	}

	response := VerifyResponse{
		Valid:         report.Valid,
		CheckedBlocks: report.CheckedBlocks,
		TrustedUntil:  report.TrustedUntil,
		Reason:        report.Reason,
	}
	if !report.Valid {
		broken := report.BrokenAt
		response.BrokenAt = &broken
		respondJSON(c, http.StatusConflict, response)
		return
	}
	respondJSON(c, http.StatusOK, response)
}
