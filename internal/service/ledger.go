package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"villagelink/internal/domain"
	"villagelink/internal/repository"
)

// verifyPageSize is how many blocks Verify reads per repository call.
const verifyPageSize = 500

// LedgerMetrics records ledger activity.
type LedgerMetrics interface {
	LedgerBlockAppended()
}

// LedgerChain is the append-only, hash-linked audit log. A single mutex
// guards the tail, so concurrent appends never share an index or predecessor.
type LedgerChain struct {
	repo        repository.LedgerRepository
	validatorID string
	metrics     LedgerMetrics
	now         func() time.Time

	mu   sync.Mutex
	tail *domain.LedgerBlock
}

// NewLedgerChain creates a new LedgerChain. metrics may be nil.
func NewLedgerChain(repo repository.LedgerRepository, validatorID string, metrics LedgerMetrics) *LedgerChain {
	return &LedgerChain{
		repo:        repo,
		validatorID: validatorID,
		metrics:     metrics,
		now:         time.Now,
	}
}

// SetClock overrides the time source.
func (c *LedgerChain) SetClock(now func() time.Time) {
	c.now = now
}

// VerifyReport is the result of walking the chain.
type VerifyReport struct {
	Valid         bool
	CheckedBlocks int64
	BrokenAt      int64 // -1 when valid
	TrustedUntil  int64 // last index whose hash and link check out, -1 if none
	Reason        string
}

// AddBlock appends a block carrying payload and returns it.
func (c *LedgerChain) AddBlock(ctx context.Context, payload any) (*domain.LedgerBlock, error) {
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tail == nil {
		last, err := c.repo.Last(ctx)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("load ledger tail: %w", err)
		}
		c.tail = last
	}

	block := &domain.LedgerBlock{
		Index:        0,
		Timestamp:    c.now().UnixMilli(),
		Payload:      canonical,
		PreviousHash: domain.GenesisPreviousHash,
		Validator:    c.validatorID,
	}
	if c.tail != nil {
		block.Index = c.tail.Index + 1
		block.PreviousHash = c.tail.Hash
	}
	block.Hash = HashBlock(block.Index, block.PreviousHash, block.Timestamp, block.Payload)

	if err := c.repo.Append(ctx, block); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Another writer moved the tail; reload on the next append.
			c.tail = nil
		}
		return nil, fmt.Errorf("append ledger block %d: %w", block.Index, err)
	}

	c.tail = block
	if c.metrics != nil {
		c.metrics.LedgerBlockAppended()
	}
	return block, nil
}

// Blocks returns up to limit blocks starting at fromIndex.
func (c *LedgerChain) Blocks(ctx context.Context, fromIndex int64, limit int) ([]*domain.LedgerBlock, error) {
	return c.repo.List(ctx, fromIndex, limit)
}

// Verify recomputes every hash and link. On the first divergence it returns
// ErrChainIntegrity along with a report naming the broken index.
func (c *LedgerChain) Verify(ctx context.Context) (*VerifyReport, error) {
	report := &VerifyReport{Valid: true, BrokenAt: -1, TrustedUntil: -1}

	prevHash := domain.GenesisPreviousHash
	expected := int64(0)
	for {
		blocks, err := c.repo.List(ctx, expected, verifyPageSize)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			return report, nil
		}

		for _, b := range blocks {
			if reason := checkBlock(b, expected, prevHash); reason != "" {
				report.Valid = false
				report.BrokenAt = expected
				report.Reason = reason
				log.Printf("[ledger] integrity violation at block %d: %s", expected, reason)
				return report, fmt.Errorf("%w at block %d: %s", ErrChainIntegrity, expected, reason)
			}
			report.CheckedBlocks++
			report.TrustedUntil = b.Index
			prevHash = b.Hash
			expected++
		}

		if len(blocks) < verifyPageSize {
			return report, nil
		}
	}
}

func checkBlock(b *domain.LedgerBlock, expectedIndex int64, prevHash string) string {
	if b.Index != expectedIndex {
		return fmt.Sprintf("expected index %d, found %d", expectedIndex, b.Index)
	}
	if b.PreviousHash != prevHash {
		return "previous hash does not match predecessor"
	}
	payload, err := canonicalJSON(b.Payload)
	if err != nil {
		return "payload is not valid JSON"
	}
	if HashBlock(b.Index, b.PreviousHash, b.Timestamp, payload) != b.Hash {
		return "stored hash does not match contents"
	}
	return ""
}

// HashBlock computes hex(sha256(index ‖ previousHash ‖ timestamp ‖ payload)).
func HashBlock(index int64, previousHash string, timestamp int64, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(index, 10)))
	h.Write([]byte(previousHash))
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalJSON encodes v with sorted object keys and no insignificant
// whitespace. Numbers keep their original text.
func canonicalJSON(v any) ([]byte, error) {
	var raw []byte
	switch p := v.(type) {
	case nil:
		return nil, ErrEmptyPayload
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode ledger payload: %w", err)
		}
		raw = b
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyPayload
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if generic == nil {
		return nil, ErrEmptyPayload
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("encode ledger payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
