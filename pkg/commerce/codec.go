package commerce

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// EncodedIntentLength is the width of the packed intent
const EncodedIntentLength = 32 + 32 + 20 + 20 + 20 + 32 + 16 + 20 + 32 + 20 + 20

const signatureLength = 65

// EncodeIntent packs the intent the way the settlement contract does before hashing:
// recipientAmount, deadline, recipient, recipientCurrency, refundDestination, feeAmount, id,
// operator, chainId, payer, contract. Integers are 32-byte big-endian, addresses 20 bytes, the id 16 bytes.
func EncodeIntent(intent *TransferIntent, payer common.Address, chainID *big.Int, contract common.Address) []byte {
	buf := make([]byte, 0, EncodedIntentLength)
	buf = append(buf, word(intent.RecipientAmount)...)
	buf = append(buf, word(intent.Deadline)...)
	buf = append(buf, intent.Recipient.Bytes()...)
	buf = append(buf, intent.RecipientCurrency.Bytes()...)
	buf = append(buf, intent.RefundDestination.Bytes()...)
	buf = append(buf, word(intent.FeeAmount)...)
	buf = append(buf, intent.ID[:]...)
	buf = append(buf, intent.Operator.Bytes()...)
	buf = append(buf, word(chainID)...)
	buf = append(buf, payer.Bytes()...)
	buf = append(buf, contract.Bytes()...)
	return buf
}

// word encodes x as a uint256, nil as zero
func word(x *big.Int) []byte {
	if x == nil {
		return make([]byte, 32)
	}
	return math.U256Bytes(new(big.Int).Set(x))
}

// HashIntent is keccak256 over the packed intent
func HashIntent(encoded []byte) common.Hash {
	return crypto.Keccak256Hash(encoded)
}

// SigningHash is the digest the operator signs. A custom prefix yields keccak256(prefix || inner),
// otherwise the personal message wrapper is applied to the inner hash.
func SigningHash(intent *TransferIntent, payer common.Address, chainID *big.Int, contract common.Address) common.Hash {
	inner := HashIntent(EncodeIntent(intent, payer, chainID, contract))
	if len(intent.Prefix) > 0 {
		return crypto.Keccak256Hash(intent.Prefix, inner.Bytes())
	}
	return common.BytesToHash(accounts.TextHash(inner.Bytes()))
}

// RecoverOperator returns the address that produced the intent signature
func RecoverOperator(signed *SignedTransferIntent, payer common.Address, chainID *big.Int, contract common.Address) (common.Address, error) {
	if len(signed.Signature) != signatureLength {
		return common.Address{}, newError(ErrSignature, nil, "signature must be %d bytes, got %d", signatureLength, len(signed.Signature))
	}

	sig := make([]byte, signatureLength)
	copy(sig, signed.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	hash := SigningHash(&signed.TransferIntent, payer, chainID, contract)
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, newError(ErrSignature, errors.Wrap(err, "ecrecover"), "failed to recover intent signer")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyIntent checks that the intent was signed by its own operator for this payer, chain and contract
func VerifyIntent(signed *SignedTransferIntent, payer common.Address, chainID *big.Int, contract common.Address) error {
	recovered, err := RecoverOperator(signed, payer, chainID, contract)
	if err != nil {
		return err
	}
	if recovered != signed.Operator {
		return newError(ErrSignature, nil, "intent signed by %s, operator is %s", recovered.Hex(), signed.Operator.Hex())
	}
	return nil
}
