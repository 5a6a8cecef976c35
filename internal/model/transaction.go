package model

// Transaction statuses recorded in history.
const (
	TxStatusSubmitted = "submitted"
	TxStatusConfirmed = "confirmed"
	TxStatusReverted  = "reverted"
)

// TransactionRecord is one submitted liquidity transaction.
type TransactionRecord struct {
	ChainID     uint64 `json:"chain_id"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Method      string `json:"method"`
	Summary     string `json:"summary"`
	Status      string `json:"status"`
	GasLimit    uint64 `json:"gas_limit"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	SubmittedAt string `json:"submitted_at"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}
