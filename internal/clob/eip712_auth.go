package clob

import (
	"crypto/ecdsa"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// L1 authentication signs a fixed ClobAuth attestation with the wallet key;
// the exchange verifies it to issue or derive API credentials.
const clobAuthMessage = "This message attests that I control the given wallet"

var (
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId)"))
	clobAuthTypeHash     = crypto.Keccak256Hash([]byte("ClobAuth(address address,string timestamp,uint256 nonce,string message)"))
	clobAuthNameHash     = crypto.Keccak256Hash([]byte("ClobAuthDomain"))
	clobAuthVersionHash  = crypto.Keccak256Hash([]byte("1"))

	bytes32Ty = mustABIType("bytes32")
	addressTy = mustABIType("address")
	uint256Ty = mustABIType("uint256")
)

func mustABIType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return ty
}

func clobAuthDomainSeparator(chainID int64) (common.Hash, error) {
	encoded, err := abi.Arguments{
		{Type: bytes32Ty},
		{Type: bytes32Ty},
		{Type: bytes32Ty},
		{Type: uint256Ty},
	}.Pack(eip712DomainTypeHash, clobAuthNameHash, clobAuthVersionHash, big.NewInt(chainID))
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}

func buildClobEip712Signature(privateKey *ecdsa.PrivateKey, signer common.Address, chainID int64, timestamp int64, nonce uint64) (string, error) {
	domainSeparator, err := clobAuthDomainSeparator(chainID)
	if err != nil {
		return "", err
	}

	// EIP-712 encodes string members as keccak256 of their bytes.
	encoded, err := abi.Arguments{
		{Type: bytes32Ty},
		{Type: addressTy},
		{Type: bytes32Ty},
		{Type: uint256Ty},
		{Type: bytes32Ty},
	}.Pack(
		clobAuthTypeHash,
		signer,
		crypto.Keccak256Hash([]byte(strconv.FormatInt(timestamp, 10))),
		new(big.Int).SetUint64(nonce),
		crypto.Keccak256Hash([]byte(clobAuthMessage)),
	)
	if err != nil {
		return "", err
	}
	structHash := crypto.Keccak256Hash(encoded)

	raw := make([]byte, 0, 2+32+32)
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator.Bytes()...)
	raw = append(raw, structHash.Bytes()...)

	sig, err := crypto.Sign(crypto.Keccak256Hash(raw).Bytes(), privateKey)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + common.Bytes2Hex(sig), nil
}
