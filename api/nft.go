package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sanujarubasinghe/cyclechain/nft"
)

type createCertificateRequest struct {
	TokenID         string          `json:"tokenId"`
	TransactionHash string          `json:"transactionHash"`
	ContractAddress string          `json:"contractAddress"`
	OwnerWallet     string          `json:"ownerWallet"`
	TokenURI        string          `json:"tokenUri"`
	BikeData        nft.BikeData    `json:"bikeData"`
	Attributes      []nft.Attribute `json:"attributes"`
}

// createCertificateHandler records a certificate minted by the customer's
// wallet. The owner is always the caller; the chain is not consulted.
func (a *API) createCertificateHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}
	if a.nfts == nil {
		unavailable(c, "certificate storage")
		return
	}

	var req createCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cert := nft.Certificate{
		TokenID:         req.TokenID,
		OwnerEmail:      cust.Email.String,
		OwnerWallet:     req.OwnerWallet,
		TransactionHash: req.TransactionHash,
		ContractAddress: req.ContractAddress,
		TokenURI:        req.TokenURI,
		BikeData:        req.BikeData,
		Attributes:      req.Attributes,
		CreatedAt:       a.now().UTC(),
	}

	err := a.nfts.Insert(c, &cert)
	switch {
	case errors.Is(err, nft.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"code": "MISSING_FIELD", "message": err.Error()})
		return
	case errors.Is(err, nft.ErrInvalidTxHash), errors.Is(err, nft.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	case errors.Is(err, nft.ErrDuplicateTokenID):
		c.JSON(http.StatusConflict, gin.H{"code": "DUPLICATE_TOKEN", "message": err.Error()})
		return
	case err != nil:
		internalError(c, "failed to store certificate", err)
		return
	}

	c.JSON(http.StatusCreated, cert)
}

func (a *API) getCertificatesHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}
	if a.nfts == nil {
		unavailable(c, "certificate storage")
		return
	}
	if !cust.Email.Valid {
		c.JSON(http.StatusOK, []nft.Certificate{})
		return
	}

	certs, err := a.nfts.FindByOwner(c, cust.Email.String)
	if err != nil {
		internalError(c, "failed to list certificates", err)
		return
	}
	if certs == nil {
		certs = []nft.Certificate{}
	}
	c.JSON(http.StatusOK, certs)
}

func (a *API) getCertificateHandler(c *gin.Context) {
	if a.nfts == nil {
		unavailable(c, "certificate storage")
		return
	}

	cert, err := a.nfts.FindByTokenID(c, c.Param("tokenId"))
	if err != nil {
		if errors.Is(err, nft.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "CERTIFICATE_NOT_FOUND", "message": "Certificate not found"})
			return
		}
		internalError(c, "failed to get certificate", err)
		return
	}
	c.JSON(http.StatusOK, cert)
}
