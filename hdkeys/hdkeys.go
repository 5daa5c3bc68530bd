// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package hdkeys provides BIP32 extended key conveniences for deriving
// contract funding and payout keys from a wallet seed. Private and public
// extended keys are distinct types, so which one a caller holds is stated in
// the API rather than discovered by probing the encoding.
package hdkeys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bisoncraft/go-bip39"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// SeedFromMnemonic converts a BIP39 mnemonic and passphrase to the wallet
// seed, validating the mnemonic checksum.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	return bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
}

// PrivateKey is an extended private key.
type PrivateKey struct {
	key *hdkeychain.ExtendedKey
}

// PublicKey is an extended public key.
type PublicKey struct {
	key *hdkeychain.ExtendedKey
}

// NewMaster derives the master extended private key from a seed.
func NewMaster(seed []byte, params *chaincfg.Params) (*PrivateKey, error) {
	key, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// ParsePrivate parses a serialized extended private key (xprv and network
// variants). A public key encoding is rejected.
func ParsePrivate(s string) (*PrivateKey, error) {
	key, err := hdkeychain.NewKeyFromString(s)
	if err != nil {
		return nil, err
	}
	if !key.IsPrivate() {
		return nil, fmt.Errorf("key is not an extended private key")
	}
	return &PrivateKey{key: key}, nil
}

// ParsePublic parses a serialized extended public key (xpub and network
// variants). A private key encoding is rejected rather than silently
// neutered.
func ParsePublic(s string) (*PublicKey, error) {
	key, err := hdkeychain.NewKeyFromString(s)
	if err != nil {
		return nil, err
	}
	if key.IsPrivate() {
		return nil, fmt.Errorf("key is an extended private key, not public")
	}
	return &PublicKey{key: key}, nil
}

// parsePath converts a BIP32 path such as "m/84'/0'/0'/0/12" to child
// indices. Hardened components are marked with ' or h. The leading m is
// optional.
func parsePath(path string) ([]uint32, error) {
	components := strings.Split(strings.TrimSpace(path), "/")
	if len(components) > 0 && (components[0] == "m" || components[0] == "") {
		components = components[1:]
	}
	indices := make([]uint32, 0, len(components))
	for _, c := range components {
		if c == "" {
			return nil, fmt.Errorf("empty path component in %q", path)
		}
		hardened := false
		if last := c[len(c)-1]; last == '\'' || last == 'h' || last == 'H' {
			hardened = true
			c = c[:len(c)-1]
		}
		idx, err := strconv.ParseUint(c, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid path component %q: %v", c, err)
		}
		if idx >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("path component %q out of range", c)
		}
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		indices = append(indices, uint32(idx))
	}
	return indices, nil
}

// Derive derives the descendant private key at the given BIP32 path.
func (p *PrivateKey) Derive(path string) (*PrivateKey, error) {
	indices, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	key := p.key
	for _, idx := range indices {
		if key, err = key.Derive(idx); err != nil {
			return nil, err
		}
	}
	return &PrivateKey{key: key}, nil
}

// Derive derives the descendant public key at the given BIP32 path. Hardened
// components fail, since hardened derivation needs the private key.
func (p *PublicKey) Derive(path string) (*PublicKey, error) {
	indices, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	key := p.key
	for _, idx := range indices {
		if key, err = key.Derive(idx); err != nil {
			return nil, err
		}
	}
	return &PublicKey{key: key}, nil
}

// Neuter returns the extended public key for this private key.
func (p *PrivateKey) Neuter() (*PublicKey, error) {
	key, err := p.key.Neuter()
	if err != nil {
		return nil, err
	}
	return &PublicKey{key: key}, nil
}

// ECPrivKey returns the EC private key at this node.
func (p *PrivateKey) ECPrivKey() (*btcec.PrivateKey, error) {
	return p.key.ECPrivKey()
}

// ECPubKey returns the EC public key at this node.
func (p *PrivateKey) ECPubKey() (*btcec.PublicKey, error) {
	return p.key.ECPubKey()
}

// ECPubKey returns the EC public key at this node.
func (p *PublicKey) ECPubKey() (*btcec.PublicKey, error) {
	return p.key.ECPubKey()
}

// String returns the serialized extended private key.
func (p *PrivateKey) String() string {
	return p.key.String()
}

// String returns the serialized extended public key.
func (p *PublicKey) String() string {
	return p.key.String()
}
