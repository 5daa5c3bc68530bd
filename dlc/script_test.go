package dlc

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
)

func TestFundingScript(t *testing.T) {
	_, pubA := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x01}, 32))
	_, pubB := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x02}, 32))

	script, err := FundingScript(pubA, pubB)
	if err != nil {
		t.Fatalf("FundingScript error: %v", err)
	}

	// Argument order must not matter.
	flipped, err := FundingScript(pubB, pubA)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(script, flipped) {
		t.Fatal("funding script depends on argument order")
	}

	// OP_2 <33> <33> OP_2 OP_CHECKMULTISIG
	if len(script) != 71 {
		t.Fatalf("script length %d, want 71", len(script))
	}
	if script[0] != txscript.OP_2 || script[69] != txscript.OP_2 ||
		script[70] != txscript.OP_CHECKMULTISIG {
		t.Fatalf("unexpected script structure: %x", script)
	}

	// Keys must appear in ascending compressed order.
	first, second := script[2:35], script[36:69]
	if bytes.Compare(first, second) >= 0 {
		t.Fatalf("keys not in ascending order: %x >= %x", first, second)
	}

	if _, err := FundingScript(pubA, nil); err == nil {
		t.Fatal("accepted nil key")
	}
}

func TestP2WSHScript(t *testing.T) {
	_, pubA := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x03}, 32))
	_, pubB := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x04}, 32))
	script, err := FundingScript(pubA, pubB)
	if err != nil {
		t.Fatal(err)
	}

	spk, err := P2WSHScript(script)
	if err != nil {
		t.Fatalf("P2WSHScript error: %v", err)
	}
	if len(spk) != 34 || spk[0] != txscript.OP_0 || spk[1] != 32 {
		t.Fatalf("unexpected p2wsh script: %x", spk)
	}
	h := sha256.Sum256(script)
	if !bytes.Equal(spk[2:], h[:]) {
		t.Fatal("p2wsh program is not sha256 of the witness script")
	}

	if _, err := P2WSHScript(nil); err == nil {
		t.Fatal("accepted empty witness script")
	}
}

func TestScriptSigForRedeem(t *testing.T) {
	// Native segwit inputs carry no scriptSig.
	sig, err := scriptSigForRedeem(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != 0 {
		t.Fatalf("native segwit scriptSig not empty: %x", sig)
	}

	// Wrapped segwit pushes the redeem script.
	redeem := []byte{txscript.OP_0, 0x14}
	redeem = append(redeem, bytes.Repeat([]byte{0xab}, 20)...)
	sig, err = scriptSigForRedeem(redeem)
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != len(redeem)+1 || int(sig[0]) != len(redeem) ||
		!bytes.Equal(sig[1:], redeem) {
		t.Fatalf("unexpected scriptSig: %x", sig)
	}
}
