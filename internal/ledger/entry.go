package ledger

import (
	"time"
)

// Status is the execution outcome recorded in a transaction receipt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// UnknownAsset marks entries whose call data did not resolve to a known token transfer.
const UnknownAsset = "UNKNOWN"

// ZeroAmount is recorded for unknown contract interactions.
const ZeroAmount = "0"

// Entry is the normalized, persisted view of one transaction.
// Addresses are lower-cased hex; Amount is already scaled by the asset's decimals.
type Entry struct {
	Hash        string    `json:"hash"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Amount      string    `json:"amount"`
	AssetSymbol string    `json:"assetSymbol"`
	BlockNumber uint64    `json:"blockNumber"`
	Status      Status    `json:"status"`
	ObservedAt  time.Time `json:"observedAt"`
}

// Involves reports whether addr (already lower-cased) is the sender or the recipient.
func (e Entry) Involves(addr string) bool {
	return e.From == addr || e.To == addr
}
