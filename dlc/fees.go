// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package dlc

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// DustLimit is the output value, in satoshi, below which outputs are
// discarded during transaction construction and their value consumed as
// additional fee.
const DustLimit = 1000

// Transaction weight constants, in weight units (4 WU = 1 vbyte). The base
// weights cover the parts of each transaction that do not depend on a
// specific party's inputs and scripts, and are split evenly between the
// parties.
const (
	// fundTxBaseWeight covers the funding transaction shell and its 2-of-2
	// p2wsh output: version, locktime, in/out counts, segwit marker and
	// flag, plus the 43 vB funding output.
	fundTxBaseWeight = 214

	// cetBaseWeight covers a CET shell and its single funding input,
	// including the worst-case 2-of-2 witness.
	cetBaseWeight = 500

	// txInputBaseWeight is the non-witness weight of one input: outpoint
	// (36) + sequence (4) + script length varint (1) = 41 vB.
	txInputBaseWeight = 164

	// txOutputOverheadWeight is the non-script weight of one output: value
	// (8) + script length varint (1) = 9 vB.
	txOutputOverheadWeight = 36
)

// IsDust reports whether the output value is below the dust limit.
func IsDust(out *wire.TxOut) bool {
	return out.Value < DustLimit
}

// weightToFee converts a weight in WU to a fee at the given rate in
// satoshi/vbyte, rounding the vbyte count up.
func weightToFee(weight int, feeRatePerVB uint64) btcutil.Amount {
	vbytes := (weight + 3) / 4
	return btcutil.Amount(uint64(vbytes) * feeRatePerVB)
}

// inputsWeight returns the total estimated weight of the party's declared
// inputs. Ordinary inputs count their scriptSig (p2sh-wrapped segwit) and
// declared maximum witness size; DLC-chained inputs count only the witness,
// since the 2-of-2 spend carries no scriptSig.
func (p *PartyParams) inputsWeight() (int, error) {
	weight := 0
	for i := range p.Inputs {
		scriptSig, err := scriptSigForRedeem(p.Inputs[i].RedeemScript)
		if err != nil {
			return 0, err
		}
		weight += txInputBaseWeight + 4*len(scriptSig) + p.Inputs[i].MaxWitnessLen
	}
	for i := range p.DlcInputs {
		weight += txInputBaseWeight + p.DlcInputs[i].MaxWitnessLen
	}
	return weight, nil
}

// ChangeOutputAndFees computes the party's change output and its shares of
// the funding and CET fees at the given fee rate. The result is a pure
// function of the receiver and arguments, so both parties derive identical
// values from the same negotiated parameters.
//
// The change value is inputAmount - collateral - fundFee - cetFee - extraFee.
// The CET fee share is paid up front by inflating the funding output, so it
// comes out of the party's inputs here. A change value below the dust limit
// is not an error; the caller discards the output at assembly time.
func (p *PartyParams) ChangeOutputAndFees(feeRatePerVB uint64, extraFee btcutil.Amount) (*wire.TxOut, btcutil.Amount, btcutil.Amount, error) {
	inputsWeight, err := p.inputsWeight()
	if err != nil {
		return nil, 0, 0, err
	}

	fundWeight := fundTxBaseWeight/2 + inputsWeight +
		4*len(p.ChangeScript) + txOutputOverheadWeight
	fundFee := weightToFee(fundWeight, feeRatePerVB)

	cetWeight := cetBaseWeight/2 + 4*len(p.PayoutScript)
	cetFee := weightToFee(cetWeight, feeRatePerVB)

	required := p.Collateral + fundFee + cetFee + extraFee
	if p.InputAmount < required {
		return nil, 0, 0, fmt.Errorf("%w: input amount %v below collateral %v plus fees %v",
			ErrInvalidArgument, p.InputAmount, p.Collateral, fundFee+cetFee+extraFee)
	}

	change := wire.NewTxOut(int64(p.InputAmount-required), p.ChangeScript)
	return change, fundFee, cetFee, nil
}
