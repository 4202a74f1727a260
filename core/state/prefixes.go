package state

import (
	"encoding/hex"
	"strconv"
)

var (
	marketplaceRootKey    = []byte("marketplace/root")
	marketplaceGigPrefix  = "marketplace/gig/"
	marketplaceOrdPrefix  = "marketplace/order/"
	marketplaceCustPrefix = "marketplace/custody/"
	bankBalancePrefix     = "bank/balance/"
	stateVersionKey       = []byte("state/version")
)

// GigKey returns the storage key of a gig record.
func GigKey(id uint64) []byte {
	return []byte(marketplaceGigPrefix + strconv.FormatUint(id, 10))
}

// OrderKey returns the storage key of an order record.
func OrderKey(id uint64) []byte {
	return []byte(marketplaceOrdPrefix + strconv.FormatUint(id, 10))
}

// CustodyKey returns the storage key of the escrowed total for asset.
func CustodyKey(asset string) []byte {
	return []byte(marketplaceCustPrefix + asset)
}

// BalanceKey returns the storage key of a principal's balance of asset.
func BalanceKey(addr [20]byte, asset string) []byte {
	return []byte(bankBalancePrefix + hex.EncodeToString(addr[:]) + "/" + asset)
}
