// Package nft keeps an off-chain mirror of bike ownership certificates
// minted by the customer's wallet. Nothing here talks to the chain: the
// record is written once from the facts the client reports after the mint
// transaction confirms.
package nft

import (
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidTxHash    = errors.New("transaction hash must be a 0x-prefixed 32 byte hex string")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrNotFound         = errors.New("certificate not found")
	ErrDuplicateTokenID = errors.New("certificate already recorded for this token")
)

type Attribute struct {
	TraitType string `json:"trait_type" bson:"trait_type"`
	Value     string `json:"value" bson:"value"`
}

type BikeData struct {
	Name          string    `json:"name" bson:"name"`
	Model         string    `json:"model,omitempty" bson:"model,omitempty"`
	SerialNumber  string    `json:"serialNumber,omitempty" bson:"serial_number,omitempty"`
	PurchasePrice string    `json:"purchasePrice,omitempty" bson:"purchase_price,omitempty"`
	PurchasedAt   time.Time `json:"purchasedAt,omitempty" bson:"purchased_at,omitempty"`
	ImageURL      string    `json:"imageUrl,omitempty" bson:"image_url,omitempty"`
}

// Certificate is the stored mirror of one minted token.
type Certificate struct {
	TokenID         string      `json:"tokenId" bson:"token_id"`
	OwnerEmail      string      `json:"ownerEmail" bson:"owner_email"`
	OwnerWallet     string      `json:"ownerWallet,omitempty" bson:"owner_wallet,omitempty"`
	TransactionHash string      `json:"transactionHash" bson:"transaction_hash"`
	ContractAddress string      `json:"contractAddress,omitempty" bson:"contract_address,omitempty"`
	TokenURI        string      `json:"tokenUri,omitempty" bson:"token_uri,omitempty"`
	BikeData        BikeData    `json:"bikeData" bson:"bike_data"`
	Attributes      []Attribute `json:"attributes" bson:"attributes"`
	CreatedAt       time.Time   `json:"createdAt" bson:"created_at"`
}

// Validate checks presence of the facts every certificate needs and the
// format of the chain identifiers. It does not verify them on-chain.
func (c *Certificate) Validate() error {
	c.TokenID = strings.TrimSpace(c.TokenID)
	c.TransactionHash = strings.TrimSpace(c.TransactionHash)

	switch {
	case c.TokenID == "":
		return missing("tokenId")
	case c.TransactionHash == "":
		return missing("transactionHash")
	case c.OwnerEmail == "":
		return missing("ownerEmail")
	case strings.TrimSpace(c.BikeData.Name) == "":
		return missing("bikeData.name")
	}

	if !isTxHash(c.TransactionHash) {
		return ErrInvalidTxHash
	}
	if c.OwnerWallet != "" {
		if !common.IsHexAddress(c.OwnerWallet) {
			return ErrInvalidAddress
		}
		c.OwnerWallet = common.HexToAddress(c.OwnerWallet).Hex()
	}
	if c.ContractAddress != "" {
		if !common.IsHexAddress(c.ContractAddress) {
			return ErrInvalidAddress
		}
		c.ContractAddress = common.HexToAddress(c.ContractAddress).Hex()
	}
	if c.Attributes == nil {
		c.Attributes = []Attribute{}
	}
	return nil
}

func isTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

func missing(field string) error {
	return &fieldError{field: field}
}

type fieldError struct {
	field string
}

func (e *fieldError) Error() string {
	return ErrMissingField.Error() + ": " + e.field
}

func (e *fieldError) Unwrap() error {
	return ErrMissingField
}
