package dto

import (
	"fmt"
	"strings"

	"github.com/feral-file/marketplace-indexer/internal/api/shared/constants"
	apierrors "github.com/feral-file/marketplace-indexer/internal/api/shared/errors"
	"github.com/feral-file/marketplace-indexer/internal/domain"
)

// CreateUserRequest represents the request body for POST /users
type CreateUserRequest struct {
	Address string `json:"address"`
}

// Validate validates the request body and canonicalizes the address
func (r *CreateUserRequest) Validate() error {
	if r.Address == "" {
		return apierrors.NewValidationError("address is required")
	}
	if !domain.IsValidAddress(r.Address) {
		return apierrors.NewValidationError(fmt.Sprintf("invalid address: %s", r.Address))
	}
	r.Address = domain.NormalizeAddress(r.Address)
	return nil
}

// CreateTokenRequest represents the request body for POST /nfts
type CreateTokenRequest struct {
	ContractAddress string  `json:"contract_address"`
	TokenNumber     string  `json:"token_number"`
	OwnerAddress    string  `json:"owner_address"`
	TokenURI        *string `json:"token_uri,omitempty"`
}

// Validate validates the request body and canonicalizes its addresses
func (r *CreateTokenRequest) Validate() error {
	if !domain.IsValidAddress(r.ContractAddress) {
		return apierrors.NewValidationError(fmt.Sprintf("invalid contract_address: %q", r.ContractAddress))
	}
	if !domain.IsValidAddress(r.OwnerAddress) {
		return apierrors.NewValidationError(fmt.Sprintf("invalid owner_address: %q", r.OwnerAddress))
	}
	if !IsTokenNumber(r.TokenNumber) {
		return apierrors.NewValidationError(fmt.Sprintf("invalid token_number: %q", r.TokenNumber))
	}
	if r.TokenURI != nil && strings.TrimSpace(*r.TokenURI) == "" {
		r.TokenURI = nil
	}

	r.ContractAddress = domain.NormalizeAddress(r.ContractAddress)
	r.OwnerAddress = domain.NormalizeAddress(r.OwnerAddress)
	return nil
}

// IsTokenNumber reports whether s is a decimal uint256 token id
func IsTokenNumber(s string) bool {
	if s == "" || len(s) > constants.MAX_TOKEN_NUMBER_LENGTH {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
