package audit

import "testing"

func event(correlationID string) TransferEvent {
	return TransferEvent{
		CorrelationID:    correlationID,
		FromAccountID:    "3f2c0d1e-0000-0000-0000-000000000001",
		ToAccountID:      "3f2c0d1e-0000-0000-0000-000000000002",
		DebitedAmount:    "110.00",
		SenderCurrency:   "USD",
		CreditedAmount:   "100.00",
		ReceiverCurrency: "EUR",
		ExchangeRate:     "1.1",
	}
}

func TestAppendChainsHashes(t *testing.T) {
	chain := NewChain()

	first := chain.Append(event("corr-1"))
	second := chain.Append(event("corr-2"))

	if first.PreviousHash != "0000000000000000000000000000000000000000000000000000000000000000" {
		t.Errorf("first entry should chain from the zero hash, got %s", first.PreviousHash)
	}
	if second.PreviousHash != first.Hash {
		t.Errorf("second entry should chain from the first entry's hash")
	}
	if first.Hash == second.Hash {
		t.Errorf("distinct entries must not share a hash")
	}
}

func TestVerifyChain(t *testing.T) {
	chain := NewChain()
	for i := 0; i < 5; i++ {
		chain.Append(event("corr"))
	}

	entries := chain.Entries()
	if !VerifyChain(entries) {
		t.Fatal("untampered chain should verify")
	}

	// Tampering with any recorded amount must break verification.
	entries[2].Event.DebitedAmount = "1.00"
	if VerifyChain(entries) {
		t.Fatal("tampered chain should not verify")
	}
}

func TestVerifyChainEmpty(t *testing.T) {
	if !VerifyChain(nil) {
		t.Fatal("empty chain should verify")
	}
}
