package adaptorsigs

import (
	"math/rand"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func TestAdaptorSignatureRandom(t *testing.T) {
	seed := time.Now().Unix()
	rng := rand.New(rand.NewSource(seed))
	defer func(t *testing.T, seed int64) {
		if t.Failed() {
			t.Logf("random seed: %d", seed)
		}
	}(t, seed)

	for i := 0; i < 100; i++ {
		privKey, err := secp256k1.GeneratePrivateKeyFromRand(rng)
		if err != nil {
			t.Fatalf("failed to read random private key: %v", err)
		}

		var hash [32]byte
		if _, err := rng.Read(hash[:]); err != nil {
			t.Fatalf("failed to read random hash: %v", err)
		}

		// Generate a random decryption secret and its public point.
		secretKey, err := secp256k1.GeneratePrivateKeyFromRand(rng)
		if err != nil {
			t.Fatalf("failed to read random private key: %v", err)
		}
		secret := &secretKey.Key
		encKey := secretKey.PubKey()

		// The signer only knows the encryption point, not the secret.
		adaptorSig, err := EncryptedSign(privKey, encKey, hash[:])
		if err != nil {
			t.Fatalf("EncryptedSign error: %v", err)
		}

		// The counterparty verifies the encrypted signature before the
		// secret is known.
		if err := adaptorSig.Verify(hash[:], privKey.PubKey(), encKey); err != nil {
			t.Fatalf("verify error: %v", err)
		}

		// Once the secret is revealed, decryption yields a valid ECDSA
		// signature.
		decryptedSig, err := adaptorSig.Decrypt(secret)
		if err != nil {
			t.Fatal(err)
		}
		if !decryptedSig.Verify(hash[:], privKey.PubKey()) {
			t.Fatal("failed to verify decrypted signature")
		}

		// Seeing the published decryption, the signer recovers the secret.
		recovered, err := adaptorSig.RecoverTweak(decryptedSig, encKey)
		if err != nil {
			t.Fatal(err)
		}
		negated := new(secp256k1.ModNScalar).NegateVal(secret)
		if !recovered.Equals(secret) && !recovered.Equals(negated) {
			t.Fatalf("original secret %v != recovered %v", secret, recovered)
		}
	}
}

func TestAdaptorSignatureWrongSecret(t *testing.T) {
	seed := time.Now().Unix()
	rng := rand.New(rand.NewSource(seed))
	defer func(t *testing.T, seed int64) {
		if t.Failed() {
			t.Logf("random seed: %d", seed)
		}
	}(t, seed)

	privKey, err := secp256k1.GeneratePrivateKeyFromRand(rng)
	if err != nil {
		t.Fatal(err)
	}
	secretKey, err := secp256k1.GeneratePrivateKeyFromRand(rng)
	if err != nil {
		t.Fatal(err)
	}
	wrongKey, err := secp256k1.GeneratePrivateKeyFromRand(rng)
	if err != nil {
		t.Fatal(err)
	}

	var hash [32]byte
	if _, err := rng.Read(hash[:]); err != nil {
		t.Fatal(err)
	}

	adaptorSig, err := EncryptedSign(privKey, secretKey.PubKey(), hash[:])
	if err != nil {
		t.Fatal(err)
	}
	if err := adaptorSig.Verify(hash[:], privKey.PubKey(), secretKey.PubKey()); err != nil {
		t.Fatal(err)
	}

	// Verification against a different encryption key must fail.
	if err := adaptorSig.Verify(hash[:], privKey.PubKey(), wrongKey.PubKey()); err == nil {
		t.Fatal("verified against the wrong encryption key")
	}

	// Decrypting with the wrong secret must be rejected.
	if _, err := adaptorSig.Decrypt(&wrongKey.Key); err == nil {
		t.Fatal("decrypted with the wrong secret")
	}
}

func TestAdaptorSignatureParsing(t *testing.T) {
	for i := 0; i < 100; i++ {
		privKey, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			t.Fatal(err)
		}
		encKey, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			t.Fatal(err)
		}
		hash := randomBytes(32)

		adaptorSig, err := EncryptedSign(privKey, encKey.PubKey(), hash)
		if err != nil {
			t.Fatal(err)
		}

		serialized := adaptorSig.Serialize()
		if len(serialized) != AdaptorSignatureSize {
			t.Fatalf("serialized to %d bytes", len(serialized))
		}
		parsed, err := ParseAdaptorSignature(serialized)
		if err != nil {
			t.Fatal(err)
		}

		if !adaptorSig.IsEqual(parsed) {
			t.Fatalf("parsed sig does not equal original")
		}
		if err := parsed.Verify(hash, privKey.PubKey(), encKey.PubKey()); err != nil {
			t.Fatalf("parsed sig does not verify: %v", err)
		}
	}
}

func TestAdaptorSignatureTampering(t *testing.T) {
	privKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	encKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	hash := randomBytes(32)

	adaptorSig, err := EncryptedSign(privKey, encKey.PubKey(), hash)
	if err != nil {
		t.Fatal(err)
	}
	serialized := adaptorSig.Serialize()

	// Flipping any byte of the scalar sections must break verification or
	// parsing. The point sections may fail to parse outright.
	for idx := 66; idx < AdaptorSignatureSize; idx += 7 {
		mutated := make([]byte, len(serialized))
		copy(mutated, serialized)
		mutated[idx] ^= 0x40
		parsed, err := ParseAdaptorSignature(mutated)
		if err != nil {
			continue
		}
		if err := parsed.Verify(hash, privKey.PubKey(), encKey.PubKey()); err == nil {
			t.Fatalf("mutated sig (byte %d) still verifies", idx)
		}
	}

	if _, err := ParseAdaptorSignature(serialized[:AdaptorSignatureSize-1]); err == nil {
		t.Fatal("parsed a truncated adaptor signature")
	}
}

func TestAdaptorSignatureDeterministic(t *testing.T) {
	privKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	encKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	hash := randomBytes(32)

	sig1, err := EncryptedSign(privKey, encKey.PubKey(), hash)
	if err != nil {
		t.Fatal(err)
	}
	sig2, err := EncryptedSign(privKey, encKey.PubKey(), hash)
	if err != nil {
		t.Fatal(err)
	}
	if !sig1.IsEqual(sig2) {
		t.Fatal("signing the same inputs twice gave different signatures")
	}
}

func randomBytes(len int) []byte {
	bytes := make([]byte, len)
	_, err := rand.Read(bytes)
	if err != nil {
		panic("error reading random bytes: " + err.Error())
	}
	return bytes
}
