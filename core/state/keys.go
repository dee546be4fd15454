package state

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"pointsvault/native/partner"
)

var (
	pointsAccountPrefix   = []byte("points/account/")
	badDebtPrefix         = []byte("points/baddebt/")
	capabilityPrefix      = []byte("partner/capability/")
	collateralPrefix      = []byte("partner/collateral/")
	controlPrefix         = []byte("partner/withdrawal/")
	stakePositionPrefix   = []byte("stake/position/")
	stakeNoncePrefix      = []byte("stake/nonce/")
	stakeOwnerIndexPrefix = []byte("stake/owner/")
)

func hashedKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func pointsAccountKey(addr [20]byte) []byte { return hashedKey(pointsAccountPrefix, addr[:]) }

func badDebtKey(addr [20]byte) []byte { return hashedKey(badDebtPrefix, addr[:]) }

func capabilityKey(addr [20]byte) []byte { return hashedKey(capabilityPrefix, addr[:]) }

func collateralKey(addr [20]byte, key partner.CollateralKey) []byte {
	return hashedKey(collateralPrefix, addr[:], []byte{byte(key.Class), ':'}, []byte(key.Asset))
}

func controlKey(addr [20]byte) []byte { return hashedKey(controlPrefix, addr[:]) }

func stakePositionKey(id [32]byte) []byte { return hashedKey(stakePositionPrefix, id[:]) }

func stakeNonceKey(owner [20]byte) []byte { return hashedKey(stakeNoncePrefix, owner[:]) }

func stakeOwnerIndexKey(owner [20]byte) []byte { return hashedKey(stakeOwnerIndexPrefix, owner[:]) }
