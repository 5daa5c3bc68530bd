package dlc

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// testParty returns party params matching the standard negotiation fixture:
// one native segwit input of 10 BTC with a 108 byte witness bound, 1 BTC
// collateral, and p2wpkh change and payout scripts.
func testParty(t *testing.T, seed byte, inputSerial, changeSerial, payoutSerial uint64) (*PartyParams, *btcec.PrivateKey) {
	t.Helper()

	var keyBytes [32]byte
	for i := range keyBytes {
		keyBytes[i] = seed + byte(i)
	}
	priv, pub := btcec.PrivKeyFromBytes(keyBytes[:])

	changePriv, _ := btcec.PrivKeyFromBytes(append([]byte{seed ^ 0xaa}, keyBytes[:31]...))
	payoutPriv, _ := btcec.PrivKeyFromBytes(append([]byte{seed ^ 0x55}, keyBytes[:31]...))
	changeScript, err := p2wpkhScript(changePriv.PubKey())
	if err != nil {
		t.Fatalf("change script: %v", err)
	}
	payoutScript, err := p2wpkhScript(payoutPriv.PubKey())
	if err != nil {
		t.Fatalf("payout script: %v", err)
	}

	var prevHash [32]byte
	prevHash[0] = seed
	return &PartyParams{
		FundPubKey:     pub,
		ChangeScript:   changeScript,
		ChangeSerialID: changeSerial,
		PayoutScript:   payoutScript,
		PayoutSerialID: payoutSerial,
		Inputs: []TxInputInfo{{
			Outpoint:      wire.OutPoint{Hash: prevHash, Index: 0},
			MaxWitnessLen: 108,
			SerialID:      inputSerial,
		}},
		InputAmount: 1_000_000_000,
		Collateral:  100_000_000,
	}, priv
}

func TestChangeOutputAndFees(t *testing.T) {
	party, _ := testParty(t, 1, 10, 11, 12)

	change, fundFee, cetFee, err := party.ChangeOutputAndFees(4, 0)
	if err != nil {
		t.Fatalf("ChangeOutputAndFees error: %v", err)
	}

	// One input: 164 + 108 = 272 WU. Fund share: 107 + 272 + 4*22 + 36 =
	// 503 WU = 126 vB, 504 sat at 4 sat/vB. CET share: 250 + 88 = 338 WU =
	// 85 vB, 340 sat.
	if fundFee != 504 {
		t.Fatalf("fund fee = %d, want 504", fundFee)
	}
	if cetFee != 340 {
		t.Fatalf("cet fee = %d, want 340", cetFee)
	}
	wantChange := int64(1_000_000_000 - 100_000_000 - 504 - 340)
	if change.Value != wantChange {
		t.Fatalf("change = %d, want %d", change.Value, wantChange)
	}

	// Deterministic: identical inputs give identical results.
	change2, fundFee2, cetFee2, err := party.ChangeOutputAndFees(4, 0)
	if err != nil {
		t.Fatal(err)
	}
	if change2.Value != change.Value || fundFee2 != fundFee || cetFee2 != cetFee {
		t.Fatal("fee computation not deterministic")
	}

	// Extra fee comes directly out of change.
	change3, _, _, err := party.ChangeOutputAndFees(4, 100)
	if err != nil {
		t.Fatal(err)
	}
	if change3.Value != wantChange-100 {
		t.Fatalf("change with extra fee = %d, want %d", change3.Value, wantChange-100)
	}
}

func TestChangeOutputInsufficientFunds(t *testing.T) {
	party, _ := testParty(t, 1, 10, 11, 12)
	party.InputAmount = party.Collateral // nothing left for fees

	if _, _, _, err := party.ChangeOutputAndFees(4, 0); err == nil {
		t.Fatal("expected error for insufficient input amount")
	}
}

func TestIsDust(t *testing.T) {
	if !IsDust(wire.NewTxOut(DustLimit-1, nil)) {
		t.Fatal("value below limit not dust")
	}
	if IsDust(wire.NewTxOut(DustLimit, nil)) {
		t.Fatal("value at limit reported as dust")
	}
}

func TestDustChangeDiscarded(t *testing.T) {
	local, _ := testParty(t, 1, 10, 11, 12)
	remote, _ := testParty(t, 2, 20, 21, 22)

	// Leave exactly 500 sat of change for the local party. It must be
	// dropped from the funding transaction and consumed as fee, not
	// redistributed.
	local.InputAmount = local.Collateral + 504 + 340 + 500

	fundTx, err := CreateFundTransaction(local, remote, 4, 0, 5)
	if err != nil {
		t.Fatalf("CreateFundTransaction error: %v", err)
	}
	if len(fundTx.TxOut) != 2 { // fund output + remote change only
		t.Fatalf("got %d outputs, want 2", len(fundTx.TxOut))
	}

	var total btcutil.Amount
	for _, out := range fundTx.TxOut {
		total += btcutil.Amount(out.Value)
	}
	wantFees := btcutil.Amount(2*504 + 500) // both fund fees plus the dust
	if local.InputAmount+remote.InputAmount-total != wantFees {
		t.Fatalf("implied fee = %d, want %d",
			local.InputAmount+remote.InputAmount-total, wantFees)
	}
}
