package domain

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainEthereumMainnet Chain = "eip155:1"
	ChainEthereumSepolia Chain = "eip155:11155111"
)

// ChainFromID builds the CAIP-2 identifier of an EVM chain id
func ChainFromID(chainID uint64) Chain {
	return Chain(fmt.Sprintf("eip155:%d", chainID))
}

// EventKind is the name of an on-chain event tracked by the indexer
type EventKind string

const (
	// Token contract
	EventKindTransfer EventKind = "Transfer"

	// Marketplace contract
	EventKindItemListed    EventKind = "ItemListed"
	EventKindItemBought    EventKind = "ItemBought"
	EventKindItemCanceled  EventKind = "ItemCanceled"
	EventKindOfferCreated  EventKind = "OfferCreated"
	EventKindOfferAccepted EventKind = "OfferAccepted"
	EventKindOfferCanceled EventKind = "OfferCanceled"
)

// EventKinds lists every tracked kind in the fixed type-level dispatch order
var EventKinds = []EventKind{
	EventKindTransfer,
	EventKindItemListed,
	EventKindItemBought,
	EventKindItemCanceled,
	EventKindOfferCreated,
	EventKindOfferAccepted,
	EventKindOfferCanceled,
}

// Valid reports whether the kind is one of the tracked kinds
func (k EventKind) Valid() bool {
	for _, kind := range EventKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Marketplace reports whether the kind is emitted by the marketplace contract
func (k EventKind) Marketplace() bool {
	return k.Valid() && k != EventKindTransfer
}

var tokenNumberRegex = regexp.MustCompile(`^[0-9]+$`)

// LedgerEvent is a decoded event from either the token or the marketplace contract.
// Only the party fields relevant to Kind are populated.
type LedgerEvent struct {
	Kind            EventKind `json:"kind"`
	ContractAddress string    `json:"contract_address"` // emitting contract
	NFTAddress      string    `json:"nft_address"`      // token contract the event refers to
	TokenNumber     string    `json:"token_number"`     // token ID as a decimal string
	From            string    `json:"from,omitempty"`
	To              string    `json:"to,omitempty"`
	Seller          string    `json:"seller,omitempty"`
	Buyer           string    `json:"buyer,omitempty"`
	Offerer         string    `json:"offerer,omitempty"`
	Price           *big.Int  `json:"price,omitempty"` // in wei
	TxHash          string    `json:"tx_hash"`
	BlockNumber     uint64    `json:"block_number"`
	LogIndex        uint      `json:"log_index"`
	Timestamp       time.Time `json:"timestamp"`
}

// Validate checks that the fields required by the event kind are present
func (e *LedgerEvent) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownEventKind, e.Kind)
	}
	if e.NFTAddress == "" {
		return fmt.Errorf("%w: missing nft address", ErrInvalidEvent)
	}
	if !tokenNumberRegex.MatchString(e.TokenNumber) {
		return fmt.Errorf("%w: invalid token number %q", ErrInvalidEvent, e.TokenNumber)
	}

	var required map[string]string
	switch e.Kind {
	case EventKindTransfer:
		required = map[string]string{"from": e.From, "to": e.To}
	case EventKindItemListed, EventKindItemCanceled:
		required = map[string]string{"seller": e.Seller}
	case EventKindItemBought:
		required = map[string]string{"buyer": e.Buyer}
	case EventKindOfferCreated, EventKindOfferCanceled:
		required = map[string]string{"offerer": e.Offerer}
	case EventKindOfferAccepted:
		required = map[string]string{"seller": e.Seller, "offerer": e.Offerer}
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidEvent, name)
		}
	}

	switch e.Kind {
	case EventKindItemListed, EventKindOfferCreated, EventKindOfferAccepted:
		if e.Price == nil || e.Price.Sign() < 0 {
			return fmt.Errorf("%w: missing price", ErrInvalidEvent)
		}
	}

	return nil
}

// Before reports whether e precedes other in chain order (block, log index)
func (e *LedgerEvent) Before(other *LedgerEvent) bool {
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	return e.LogIndex < other.LogIndex
}

// IsMint reports whether a transfer originates from the zero address
func (e *LedgerEvent) IsMint() bool {
	return e.Kind == EventKindTransfer && IsZeroAddress(e.From)
}

// NormalizeAddress returns the canonical (lower-cased) form of an address
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsZeroAddress reports whether the address is the zero address in any casing
func IsZeroAddress(address string) bool {
	return NormalizeAddress(address) == ETHEREUM_ZERO_ADDRESS
}

// IsValidAddress reports whether the string is a 20-byte hex address
func IsValidAddress(address string) bool {
	return common.IsHexAddress(strings.TrimSpace(address))
}

// FormatPrice converts a wei amount into ether units
func FormatPrice(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -ETHER_DECIMALS)
}
