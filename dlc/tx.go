// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package dlc

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

const (
	// txVersion is the version of every constructed transaction.
	txVersion = 2

	// fundInputSequence disables both locktime and RBF signaling on funding
	// inputs.
	fundInputSequence = wire.MaxTxInSequenceNum

	// lockTimeSequence is used on CET and refund inputs. It is non-final so
	// nLockTime is enforced, without signaling RBF.
	lockTimeSequence = wire.MaxTxInSequenceNum - 1
)

// serialTxIn pairs an input with its negotiated serial id for ordering.
type serialTxIn struct {
	serialID uint64
	txIn     *wire.TxIn
}

// serialTxOut pairs an output with its negotiated serial id for ordering.
type serialTxOut struct {
	serialID uint64
	txOut    *wire.TxOut
}

// sortedTxIns orders inputs by ascending serial id. Ties keep their relative
// order, so both parties must still agree on the full serial id assignment
// for byte-identical transactions.
func sortedTxIns(ins []serialTxIn) []*wire.TxIn {
	sort.SliceStable(ins, func(i, j int) bool { return ins[i].serialID < ins[j].serialID })
	txIns := make([]*wire.TxIn, len(ins))
	for i := range ins {
		txIns[i] = ins[i].txIn
	}
	return txIns
}

// sortedTxOuts orders outputs by ascending serial id, discarding dust.
func sortedTxOuts(outs []serialTxOut) []*wire.TxOut {
	sort.SliceStable(outs, func(i, j int) bool { return outs[i].serialID < outs[j].serialID })
	txOuts := make([]*wire.TxOut, 0, len(outs))
	for i := range outs {
		if IsDust(outs[i].txOut) {
			continue
		}
		txOuts = append(txOuts, outs[i].txOut)
	}
	return txOuts
}

// fundingTxIns collects a party's declared inputs as wire inputs with their
// serial ids.
func fundingTxIns(p *PartyParams) ([]serialTxIn, error) {
	ins := make([]serialTxIn, 0, len(p.Inputs)+len(p.DlcInputs))
	for i := range p.Inputs {
		scriptSig, err := scriptSigForRedeem(p.Inputs[i].RedeemScript)
		if err != nil {
			return nil, err
		}
		txIn := wire.NewTxIn(&p.Inputs[i].Outpoint, scriptSig, nil)
		txIn.Sequence = fundInputSequence
		ins = append(ins, serialTxIn{p.Inputs[i].SerialID, txIn})
	}
	for i := range p.DlcInputs {
		op, err := p.DlcInputs[i].outpoint()
		if err != nil {
			return nil, err
		}
		txIn := wire.NewTxIn(&op, nil, nil)
		txIn.Sequence = fundInputSequence
		ins = append(ins, serialTxIn{p.DlcInputs[i].InputSerialID, txIn})
	}
	return ins, nil
}

// createFundTransaction assembles the funding transaction from both parties'
// inputs, the funding output, and the precomputed change outputs.
func createFundTransaction(local, remote *PartyParams, fundValue btcutil.Amount,
	fundScriptPubKey []byte, localChange, remoteChange *wire.TxOut,
	fundLockTime uint32, fundOutputSerialID uint64) (*wire.MsgTx, error) {

	localIns, err := fundingTxIns(local)
	if err != nil {
		return nil, err
	}
	remoteIns, err := fundingTxIns(remote)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(txVersion)
	tx.LockTime = fundLockTime
	tx.TxIn = sortedTxIns(append(localIns, remoteIns...))
	tx.TxOut = sortedTxOuts([]serialTxOut{
		{fundOutputSerialID, wire.NewTxOut(int64(fundValue), fundScriptPubKey)},
		{local.ChangeSerialID, localChange},
		{remote.ChangeSerialID, remoteChange},
	})
	if len(tx.TxIn) == 0 {
		return nil, NewError(ErrInvalidArgument, "funding transaction has no inputs")
	}
	return tx, nil
}

// CreateFundTransaction builds only the funding transaction for the two
// parties at the given fee rate. Most callers want CreateDlcTransactions,
// which also derives the CETs and refund transaction from the same data.
func CreateFundTransaction(local, remote *PartyParams, feeRatePerVB uint64,
	fundLockTime uint32, fundOutputSerialID uint64) (*wire.MsgTx, error) {

	if err := local.validate(); err != nil {
		return nil, err
	}
	if err := remote.validate(); err != nil {
		return nil, err
	}

	localChange, _, localCetFee, err := local.ChangeOutputAndFees(feeRatePerVB, 0)
	if err != nil {
		return nil, err
	}
	remoteChange, _, remoteCetFee, err := remote.ChangeOutputAndFees(feeRatePerVB, 0)
	if err != nil {
		return nil, err
	}

	fundingScript, err := FundingScript(local.FundPubKey, remote.FundPubKey)
	if err != nil {
		return nil, err
	}
	fundSPK, err := P2WSHScript(fundingScript)
	if err != nil {
		return nil, err
	}

	fundValue := local.Collateral + remote.Collateral + localCetFee + remoteCetFee
	return createFundTransaction(local, remote, fundValue, fundSPK,
		localChange, remoteChange, fundLockTime, fundOutputSerialID)
}

// CreateCet builds a single contract execution transaction spending the
// funding output to at most two outputs, ordered by serial id with dust
// sides omitted. The input sequence enforces the CET locktime.
func CreateCet(localOutput *wire.TxOut, localSerialID uint64,
	remoteOutput *wire.TxOut, remoteSerialID uint64,
	fundOutpoint wire.OutPoint, lockTime uint32) *wire.MsgTx {

	tx := wire.NewMsgTx(txVersion)
	tx.LockTime = lockTime
	txIn := wire.NewTxIn(&fundOutpoint, nil, nil)
	txIn.Sequence = lockTimeSequence
	tx.AddTxIn(txIn)
	tx.TxOut = sortedTxOuts([]serialTxOut{
		{localSerialID, localOutput},
		{remoteSerialID, remoteOutput},
	})
	return tx
}

// CreateCets builds one CET per payout, in payout order.
func CreateCets(fundOutpoint wire.OutPoint, localScript []byte, localSerialID uint64,
	remoteScript []byte, remoteSerialID uint64, payouts []Payout, lockTime uint32) []*wire.MsgTx {

	cets := make([]*wire.MsgTx, 0, len(payouts))
	for _, payout := range payouts {
		localOut := wire.NewTxOut(int64(payout.Offer), localScript)
		remoteOut := wire.NewTxOut(int64(payout.Accept), remoteScript)
		cets = append(cets, CreateCet(localOut, localSerialID, remoteOut,
			remoteSerialID, fundOutpoint, lockTime))
	}
	return cets
}

// CreateRefundTransaction builds the timelocked refund transaction returning
// each party's collateral. The input sequence is non-final so nLockTime,
// the refund availability time, is enforced.
func CreateRefundTransaction(localOutput, remoteOutput *wire.TxOut,
	fundOutpoint wire.OutPoint, lockTime uint32) *wire.MsgTx {

	tx := wire.NewMsgTx(txVersion)
	tx.LockTime = lockTime
	txIn := wire.NewTxIn(&fundOutpoint, nil, nil)
	txIn.Sequence = lockTimeSequence
	tx.AddTxIn(txIn)
	tx.AddTxOut(localOutput)
	tx.AddTxOut(remoteOutput)
	return tx
}

// CreateDlcTransactions builds the full transaction set of a contract: the
// funding transaction, one CET per payout, and the refund transaction.
// Each payout must divide the total collateral exactly. Parties carrying
// DLC-chained inputs must use CreateSplicedDlcTransactions.
func CreateDlcTransactions(payouts []Payout, local, remote *PartyParams,
	refundLockTime uint32, feeRatePerVB uint64, fundLockTime, cetLockTime uint32,
	fundOutputSerialID uint64) (*DlcTransactions, error) {

	if len(local.DlcInputs) > 0 || len(remote.DlcInputs) > 0 {
		return nil, NewError(ErrInvalidArgument,
			"DLC-chained inputs require the spliced constructor")
	}
	return createDlcTransactions(payouts, local, remote, refundLockTime,
		feeRatePerVB, fundLockTime, cetLockTime, fundOutputSerialID)
}

// CreateSplicedDlcTransactions is CreateDlcTransactions for parties whose
// inputs include funding outputs of prior contracts, spent directly into the
// new funding transaction.
func CreateSplicedDlcTransactions(payouts []Payout, local, remote *PartyParams,
	refundLockTime uint32, feeRatePerVB uint64, fundLockTime, cetLockTime uint32,
	fundOutputSerialID uint64) (*DlcTransactions, error) {

	for i := range local.DlcInputs {
		if _, err := local.DlcInputs[i].fundingScript(); err != nil {
			return nil, err
		}
	}
	for i := range remote.DlcInputs {
		if _, err := remote.DlcInputs[i].fundingScript(); err != nil {
			return nil, err
		}
	}
	return createDlcTransactions(payouts, local, remote, refundLockTime,
		feeRatePerVB, fundLockTime, cetLockTime, fundOutputSerialID)
}

func createDlcTransactions(payouts []Payout, local, remote *PartyParams,
	refundLockTime uint32, feeRatePerVB uint64, fundLockTime, cetLockTime uint32,
	fundOutputSerialID uint64) (*DlcTransactions, error) {

	if err := local.validate(); err != nil {
		return nil, err
	}
	if err := remote.validate(); err != nil {
		return nil, err
	}
	if len(payouts) == 0 {
		return nil, NewError(ErrInvalidArgument, "no payouts")
	}

	totalCollateral := local.Collateral + remote.Collateral
	for i, payout := range payouts {
		if payout.Offer+payout.Accept != totalCollateral {
			return nil, fmt.Errorf("%w: payout %d sums to %v, total collateral is %v",
				ErrInvalidArgument, i, payout.Offer+payout.Accept, totalCollateral)
		}
	}

	localChange, _, localCetFee, err := local.ChangeOutputAndFees(feeRatePerVB, 0)
	if err != nil {
		return nil, err
	}
	remoteChange, _, remoteCetFee, err := remote.ChangeOutputAndFees(feeRatePerVB, 0)
	if err != nil {
		return nil, err
	}

	fundingScript, err := FundingScript(local.FundPubKey, remote.FundPubKey)
	if err != nil {
		return nil, err
	}
	fundSPK, err := P2WSHScript(fundingScript)
	if err != nil {
		return nil, err
	}

	// The funding output carries the CET fees of both parties on top of the
	// collateral, so CETs spend it without needing their own change.
	fundValue := totalCollateral + localCetFee + remoteCetFee
	fundTx, err := createFundTransaction(local, remote, fundValue, fundSPK,
		localChange, remoteChange, fundLockTime, fundOutputSerialID)
	if err != nil {
		return nil, err
	}

	dlcTxs := &DlcTransactions{Fund: fundTx, FundingScript: fundingScript}
	fundOutpoint, err := dlcTxs.FundOutpoint()
	if err != nil {
		return nil, err
	}

	dlcTxs.Cets = CreateCets(fundOutpoint, local.PayoutScript, local.PayoutSerialID,
		remote.PayoutScript, remote.PayoutSerialID, payouts, cetLockTime)

	localRefund := wire.NewTxOut(int64(local.Collateral), local.PayoutScript)
	remoteRefund := wire.NewTxOut(int64(remote.Collateral), remote.PayoutScript)
	dlcTxs.Refund = CreateRefundTransaction(localRefund, remoteRefund,
		fundOutpoint, refundLockTime)

	log.Tracef("built contract transactions: fund %s, %d CETs, refund locktime %d",
		fundTx.TxHash(), len(dlcTxs.Cets), refundLockTime)
	return dlcTxs, nil
}
