package commerce

import (
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Signer holds a credential. Implementations never expose the key material.
type Signer interface {
	// Address returns the signer's address.
	Address() common.Address

	// SignHash signs a 32-byte digest and returns a 65-byte signature with V in {27, 28}.
	SignHash(hash common.Hash) ([]byte, error)

	// Transactor returns transaction options that sign for the given chain.
	Transactor(chainID *big.Int) (*bind.TransactOpts, error)
}

// KeySigner is a Signer backed by an in-memory private key
type KeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

var _ Signer = (*KeySigner)(nil)

// NewKeySigner creates a signer for the given private key
func NewKeySigner(privateKey *ecdsa.PrivateKey) (*KeySigner, error) {
	pubKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("cannot assign public key to ECDSA")
	}
	return &KeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*pubKeyECDSA),
	}, nil
}

// NewKeySignerFromHex parses a hex private key, with or without 0x
func NewKeySignerFromHex(hexKey string) (*KeySigner, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		// never echo the key back
		return nil, invalidConfig("failed to parse private key")
	}
	return NewKeySigner(privateKey)
}

// GenerateKeySigner creates a signer with a fresh random key
func GenerateKeySigner() (*KeySigner, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate key")
	}
	return NewKeySigner(privateKey)
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

func (s *KeySigner) SignHash(hash common.Hash) ([]byte, error) {
	signature, err := crypto.Sign(hash.Bytes(), s.privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign hash")
	}
	signature[64] += 27 // Transform V from 0/1 to 27/28 according to the yellow paper

	return signature, nil
}

func (s *KeySigner) Transactor(chainID *big.Int) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(s.privateKey, chainID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create keyed transactor")
	}
	return auth, nil
}
