// Package audit provides a tamper-evident journal of committed
// transfers using hash chaining: each entry's hash covers the previous
// entry's hash, so any after-the-fact edit breaks the chain.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TransferEvent is the audited payload for one committed transfer.
type TransferEvent struct {
	CorrelationID    string `json:"correlation_id"`
	FromAccountID    string `json:"from_account_id"`
	ToAccountID      string `json:"to_account_id"`
	DebitedAmount    string `json:"debited_amount"`
	SenderCurrency   string `json:"sender_currency"`
	CreditedAmount   string `json:"credited_amount"`
	ReceiverCurrency string `json:"receiver_currency"`
	ExchangeRate     string `json:"exchange_rate"`
}

// canonical returns a stable single-line rendering of the event used as
// hash input. Field order is fixed; do not reorder.
func (ev TransferEvent) canonical() string {
	return strings.Join([]string{
		ev.CorrelationID,
		ev.FromAccountID,
		ev.ToAccountID,
		ev.DebitedAmount,
		ev.SenderCurrency,
		ev.CreditedAmount,
		ev.ReceiverCurrency,
		ev.ExchangeRate,
	}, ",")
}

// Entry is a single chained journal entry.
type Entry struct {
	Timestamp    string        `json:"timestamp"`
	PreviousHash string        `json:"previous_hash"`
	Event        TransferEvent `json:"event"`
	Hash         string        `json:"hash"`
}

// Chain is a hash-chained transfer journal. Safe for concurrent use.
type Chain struct {
	mu           sync.Mutex
	previousHash string
	entries      []*Entry
}

// NewChain creates a journal initialized with a zero hash.
func NewChain() *Chain {
	return &Chain{
		previousHash: strings.Repeat("0", 64),
	}
}

// Append adds a transfer event to the chain and returns the new entry.
func (c *Chain) Append(event TransferEvent) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &Entry{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		PreviousHash: c.previousHash,
		Event:        event,
	}
	entry.Hash = hashEntry(entry.PreviousHash, entry.Timestamp, event)

	c.previousHash = entry.Hash
	c.entries = append(c.entries, entry)
	return entry
}

// Entries returns a snapshot of the journal.
func (c *Chain) Entries() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func hashEntry(previousHash, timestamp string, event TransferEvent) string {
	input := fmt.Sprintf("%s|%s|%s", previousHash, timestamp, event.canonical())
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks that a slice of entries forms a valid hash chain.
func VerifyChain(entries []*Entry) bool {
	for i, entry := range entries {
		prevHash := entry.PreviousHash
		if i > 0 && entries[i-1].Hash != prevHash {
			return false
		}
		if hashEntry(prevHash, entry.Timestamp, entry.Event) != entry.Hash {
			return false
		}
	}
	return true
}
