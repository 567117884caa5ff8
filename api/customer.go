package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sanujarubasinghe/cyclechain/customer"
)

type customerResponse struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email,omitempty"`
	Name          string    `json:"name,omitempty"`
	LoyaltyPoints int       `json:"loyaltyPoints"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toCustomerResponse(cust *customer.Customer) customerResponse {
	return customerResponse{
		ID:            cust.ID,
		Email:         cust.Email.String,
		Name:          cust.Name.String,
		LoyaltyPoints: cust.LoyaltyPoints,
		CreatedAt:     cust.CreatedAt,
	}
}

func (a *API) getMeHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toCustomerResponse(cust))
}

type updateMeRequest struct {
	Email string `json:"email" binding:"omitempty,email"`
	Name  string `json:"name" binding:"max=200"`
}

func (a *API) updateMeHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}

	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = cust.Email.String
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = cust.Name.String
	}

	if err := a.cr.UpdateProfile(c, cust.Auth0ID, email, name); err != nil {
		internalError(c, "failed to update profile", err)
		return
	}
	cust.Email.String, cust.Email.Valid = email, email != ""
	cust.Name.String, cust.Name.Valid = name, name != ""

	c.JSON(http.StatusOK, toCustomerResponse(cust))
}

type cardResponse struct {
	ID         uuid.UUID `json:"id"`
	HolderName string    `json:"holderName"`
	Brand      string    `json:"brand"`
	Last4      string    `json:"last4"`
	ExpMonth   int       `json:"expMonth"`
	ExpYear    int       `json:"expYear"`
}

func toCardResponse(card customer.Card) cardResponse {
	return cardResponse{
		ID:         card.ID,
		HolderName: card.HolderName,
		Brand:      card.Brand,
		Last4:      card.Last4,
		ExpMonth:   card.ExpMonth,
		ExpYear:    card.ExpYear,
	}
}

func (a *API) getCardsHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}

	cards, err := a.cr.GetCards(c, cust.ID)
	if err != nil {
		internalError(c, "failed to list cards", err)
		return
	}

	out := make([]cardResponse, 0, len(cards))
	for _, card := range cards {
		out = append(out, toCardResponse(card))
	}
	c.JSON(http.StatusOK, out)
}

type addCardRequest struct {
	HolderName string `json:"holderName" binding:"required"`
	Number     string `json:"number" binding:"required"`
	ExpMonth   int    `json:"expMonth" binding:"required"`
	ExpYear    int    `json:"expYear" binding:"required"`
}

func (a *API) addCardHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}

	var req addCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	card, err := customer.NewCard(cust.ID, req.HolderName, req.Number, req.ExpMonth, req.ExpYear, a.now())
	switch {
	case errors.Is(err, customer.ErrInvalidCardNumber):
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_CARD", "message": "Card number is invalid"})
		return
	case errors.Is(err, customer.ErrCardExpired):
		c.JSON(http.StatusBadRequest, gin.H{"code": "CARD_EXPIRED", "message": "Card has expired"})
		return
	case err != nil:
		internalError(c, "failed to validate card", err)
		return
	}

	if err := a.cr.AddCard(c, &card); err != nil {
		internalError(c, "failed to save card", err)
		return
	}

	c.JSON(http.StatusCreated, toCardResponse(card))
}

func (a *API) deleteCardHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}
	cardID, ok := uuidParam(c, "cardId")
	if !ok {
		return
	}

	err := a.cr.DeleteCard(c, cust.ID, cardID)
	if errors.Is(err, customer.ErrCardNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": "CARD_NOT_FOUND", "message": "Card not found"})
		return
	}
	if err != nil {
		internalError(c, "failed to delete card", err)
		return
	}

	c.Status(http.StatusNoContent)
}
