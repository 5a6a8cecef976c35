package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTransactionRecordOmitsEmptyReceiptFields(t *testing.T) {
	rec := TransactionRecord{
		ChainID:     1,
		Hash:        "0xabc",
		From:        "0x1111111111111111111111111111111111111111",
		To:          "0x2222222222222222222222222222222222222222",
		Method:      "addLiquidity",
		Summary:     "Add 1 TKA and 2 TKB",
		Status:      TxStatusSubmitted,
		GasLimit:    110000,
		SubmittedAt: "2024-01-01T00:00:00Z",
	}

	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	text := string(b)
	if strings.Contains(text, "block_number") || strings.Contains(text, "updated_at") {
		t.Fatalf("unexpected receipt fields in %s", text)
	}
	if !strings.Contains(text, `"status":"submitted"`) {
		t.Fatalf("missing status in %s", text)
	}
}
