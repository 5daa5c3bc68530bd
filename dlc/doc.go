// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package dlc builds and signs the transactions of two-party Discreet Log
// Contracts: the 2-of-2 funding transaction, one contract execution
// transaction (CET) per outcome, and the timelocked refund transaction.
//
// Outcome enforcement uses ECDSA adaptor signatures encrypted under oracle
// anticipated signature points. A party's CET signatures are verifiable up
// front but only decryptable once the oracles attest to the matching
// outcome, so neither party can settle on an outcome the oracles did not
// announce.
//
// The package performs no network or wallet operations. Callers supply
// inputs, scripts, and negotiated parameters; both parties derive
// byte-identical transactions from the same negotiation data.
package dlc
