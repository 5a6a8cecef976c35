package model

// LiquidityEvent is a decoded pair Mint or Burn log from a receipt.
type LiquidityEvent struct {
	Name     string `json:"name"`
	Pair     string `json:"pair"`
	Sender   string `json:"sender"`
	To       string `json:"to,omitempty"`
	Amount0  string `json:"amount0"`
	Amount1  string `json:"amount1"`
	LogIndex uint   `json:"log_index"`
}
