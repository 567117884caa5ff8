package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sanujarubasinghe/cyclechain/bike"
	"github.com/sanujarubasinghe/cyclechain/feedback"
	"github.com/sanujarubasinghe/cyclechain/reservation"
)

type feedbackResponse struct {
	ID            uuid.UUID  `json:"id"`
	BikeID        uuid.UUID  `json:"bikeId"`
	ReservationID *uuid.UUID `json:"reservationId,omitempty"`
	Rating        int        `json:"rating"`
	Comment       string     `json:"comment"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func toFeedbackResponse(f feedback.Feedback) feedbackResponse {
	resp := feedbackResponse{
		ID:        f.ID,
		BikeID:    f.BikeID,
		Rating:    f.Rating,
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
	if f.ReservationID.Valid {
		resp.ReservationID = &f.ReservationID.UUID
	}
	return resp
}

func toFeedbackResponses(list []feedback.Feedback) []feedbackResponse {
	out := make([]feedbackResponse, 0, len(list))
	for _, f := range list {
		out = append(out, toFeedbackResponse(f))
	}
	return out
}

func feedbackValidationError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, feedback.ErrInvalidRating):
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_RATING", "message": err.Error()})
	case errors.Is(err, feedback.ErrCommentTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"code": "COMMENT_TOO_LONG", "message": err.Error()})
	default:
		return false
	}
	return true
}

type createFeedbackRequest struct {
	BikeID        string `json:"bikeId" binding:"required"`
	ReservationID string `json:"reservationId"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
}

func (a *API) createFeedbackHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}

	var req createFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if feedbackValidationError(c, feedback.ValidateRating(req.Rating)) {
		return
	}

	bikeID, err := uuid.Parse(req.BikeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ID", "message": "Invalid bikeId"})
		return
	}
	if _, err := a.br.GetBike(c, bikeID); err != nil {
		if errors.Is(err, bike.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "BIKE_NOT_FOUND", "message": "Bike not found"})
			return
		}
		internalError(c, "failed to get bike", err)
		return
	}

	f := feedback.Feedback{
		ID:         uuid.New(),
		CustomerID: cust.ID,
		BikeID:     bikeID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}

	if req.ReservationID != "" {
		resID, err := uuid.Parse(req.ReservationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ID", "message": "Invalid reservationId"})
			return
		}
		res, err := a.rr.GetByID(c, resID)
		if err != nil {
			if errors.Is(err, reservation.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": "RESERVATION_NOT_FOUND", "message": "Reservation not found"})
				return
			}
			internalError(c, "failed to get reservation", err)
			return
		}
		if res.CustomerID != cust.ID || res.BikeID != bikeID {
			c.JSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "message": "Reservation does not match this bike and customer"})
			return
		}
		f.ReservationID = uuid.NullUUID{UUID: resID, Valid: true}
	}

	err = a.fr.Create(c, &f)
	if feedbackValidationError(c, err) {
		return
	}
	if err != nil {
		internalError(c, "failed to create feedback", err)
		return
	}

	c.JSON(http.StatusCreated, toFeedbackResponse(f))
}

type updateFeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// ownedFeedback loads the :id feedback and checks the caller wrote it.
func (a *API) ownedFeedback(c *gin.Context) (feedback.Feedback, bool) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return feedback.Feedback{}, false
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return feedback.Feedback{}, false
	}

	f, err := a.fr.GetByID(c, id)
	if err != nil {
		if errors.Is(err, feedback.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "FEEDBACK_NOT_FOUND", "message": "Feedback not found"})
			return feedback.Feedback{}, false
		}
		internalError(c, "failed to get feedback", err)
		return feedback.Feedback{}, false
	}
	if f.CustomerID != cust.ID {
		c.JSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "message": feedback.ErrNotAuthorized.Error()})
		return feedback.Feedback{}, false
	}
	return f, true
}

func (a *API) updateFeedbackHandler(c *gin.Context) {
	var req updateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if feedbackValidationError(c, feedback.ValidateRating(req.Rating)) {
		return
	}

	f, ok := a.ownedFeedback(c)
	if !ok {
		return
	}
	f.Rating = req.Rating
	f.Comment = req.Comment

	err := a.fr.Update(c, &f)
	if feedbackValidationError(c, err) {
		return
	}
	if errors.Is(err, feedback.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": "FEEDBACK_NOT_FOUND", "message": "Feedback not found"})
		return
	}
	if err != nil {
		internalError(c, "failed to update feedback", err)
		return
	}

	c.JSON(http.StatusOK, toFeedbackResponse(f))
}

func (a *API) deleteFeedbackHandler(c *gin.Context) {
	f, ok := a.ownedFeedback(c)
	if !ok {
		return
	}

	err := a.fr.Delete(c, f.ID)
	if err != nil && !errors.Is(err, feedback.ErrNotFound) {
		internalError(c, "failed to delete feedback", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) getMyFeedbackHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}

	list, err := a.fr.ListByCustomer(c, cust.ID)
	if err != nil {
		internalError(c, "failed to list feedback", err)
		return
	}
	c.JSON(http.StatusOK, toFeedbackResponses(list))
}

func (a *API) bikeFeedbackHandler(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	list, err := a.fr.ListByBike(c, id)
	if err != nil {
		internalError(c, "failed to list bike feedback", err)
		return
	}
	c.JSON(http.StatusOK, toFeedbackResponses(list))
}
