package domain

import "encoding/json"

// GenesisPreviousHash is the previous-hash value of block 0.
const GenesisPreviousHash = "0"

// Ledger payload types.
const (
	LedgerTypeTokenTransfer = "TOKEN_TRANSFER"
	LedgerTypeTokenEarn     = "TOKEN_EARN"
	LedgerTypeTokenSpend    = "TOKEN_SPEND"
	LedgerTypeNFTMint       = "NFT_MINT"
)

// LedgerBlock is one entry of the append-only hash chain.
// Payload holds canonical JSON; Timestamp is unix milliseconds.
type LedgerBlock struct {
	Index        int64
	Timestamp    int64
	Payload      json.RawMessage
	PreviousHash string
	Hash         string
	Validator    string
}
