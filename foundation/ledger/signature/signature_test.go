package signature_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/qledger/blockchain/foundation/ledger/database"
	"github.com/qledger/blockchain/foundation/ledger/signature"
)

const (
	success = "✓"
	failed  = "✗"
)

func TestSigning(t *testing.T) {
	value := struct {
		Name string `json:"name"`
	}{
		Name: "Jessica",
	}

	t.Log("Given the need to verify signatures can be recovered to the signing account.")
	{
		t.Logf("\tTest 0:\tWhen signing a value with a private key.")
		{
			privateKey, err := crypto.GenerateKey()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to generate a private key: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to generate a private key.", success)

			v, r, s, err := signature.Sign(value, privateKey)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to sign the value: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to sign the value.", success)

			if err := signature.VerifySignature(v, r, s); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to verify the signature: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to verify the signature.", success)

			addr, err := signature.FromAddress(value, v, r, s)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to recover an address: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to recover an address.", success)

			want := string(database.PublicKeyToAccountID(privateKey.PublicKey))
			if addr != want {
				t.Errorf("\t%s\tTest 0:\tShould recover the signing account.", failed)
				t.Logf("\t\tTest 0:\tGot: %s", addr)
				t.Logf("\t\tTest 0:\tExp: %s", want)
			} else {
				t.Logf("\t%s\tTest 0:\tShould recover the signing account.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen recovering with a different value.")
		{
			privateKey, err := crypto.GenerateKey()
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to generate a private key: %v", failed, err)
			}

			v, r, s, err := signature.Sign(value, privateKey)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to sign the value: %v", failed, err)
			}

			other := struct {
				Name string `json:"name"`
			}{
				Name: "Frank",
			}

			addr, err := signature.FromAddress(other, v, r, s)
			if err == nil {
				want := string(database.PublicKeyToAccountID(privateKey.PublicKey))
				if addr == want {
					t.Fatalf("\t%s\tTest 1:\tShould not recover the signing account for a different value.", failed)
				}
			}
			t.Logf("\t%s\tTest 1:\tShould not recover the signing account for a different value.", success)
		}
	}
}

func TestHash(t *testing.T) {
	value := struct {
		Name string `json:"name"`
	}{
		Name: "Jessica",
	}

	t.Log("Given the need to verify hashing is stable and properly formatted.")
	{
		t.Logf("\tTest 0:\tWhen hashing the same value twice.")
		{
			hash1 := signature.Hash(value)
			hash2 := signature.Hash(value)

			if hash1 != hash2 {
				t.Errorf("\t%s\tTest 0:\tShould produce the same hash for the same value.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould produce the same hash for the same value.", success)
			}

			if len(hash1) != 66 || hash1[:2] != "0x" {
				t.Errorf("\t%s\tTest 0:\tShould produce a 0x prefixed 32 byte hash: %s", failed, hash1)
			} else {
				t.Logf("\t%s\tTest 0:\tShould produce a 0x prefixed 32 byte hash.", success)
			}

			if hash1 == signature.ZeroHash {
				t.Errorf("\t%s\tTest 0:\tShould not produce the zero hash.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould not produce the zero hash.", success)
			}
		}
	}
}
