// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package dlc

import (
	"bytes"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
)

// FundingScript builds the 2-of-2 CHECKMULTISIG script locking the funding
// output. The keys are placed in ascending order of their compressed
// encodings, so both parties derive the identical script regardless of
// argument order.
func FundingScript(a, b *btcec.PublicKey) ([]byte, error) {
	if a == nil || b == nil {
		return nil, NewError(ErrInvalidKey, "nil funding public key")
	}
	first, second := a.SerializeCompressed(), b.SerializeCompressed()
	if bytes.Compare(first, second) > 0 {
		first, second = second, first
	}
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_2).
		AddData(first).
		AddData(second).
		AddOp(txscript.OP_2).
		AddOp(txscript.OP_CHECKMULTISIG).
		Script()
}

// P2WSHScript returns the version 0 witness output script paying to the
// given witness script, OP_0 <sha256(script)>.
func P2WSHScript(script []byte) ([]byte, error) {
	if len(script) == 0 {
		return nil, NewError(ErrInvalidArgument, "empty witness script")
	}
	h := sha256.Sum256(script)
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(h[:]).
		Script()
}

// scriptSigForRedeem returns the scriptSig an input carries in the final
// transaction. Native segwit inputs have an empty scriptSig; p2sh-wrapped
// segwit inputs push the declared redeem script.
func scriptSigForRedeem(redeemScript []byte) ([]byte, error) {
	if len(redeemScript) == 0 {
		return nil, nil
	}
	return txscript.NewScriptBuilder().AddData(redeemScript).Script()
}
