package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sanujarubasinghe/cyclechain/bike"
	"github.com/sanujarubasinghe/cyclechain/customer"
	"github.com/sanujarubasinghe/cyclechain/internal/lock"
	"github.com/sanujarubasinghe/cyclechain/internal/mailer"
	"github.com/sanujarubasinghe/cyclechain/internal/middleware"
	"github.com/sanujarubasinghe/cyclechain/reservation"
)

type reservationResponse struct {
	ID            uuid.UUID          `json:"id"`
	BikeID        uuid.UUID          `json:"bikeId"`
	Status        reservation.Status `json:"status"`
	StartTime     *time.Time         `json:"startTime,omitempty"`
	EndTime       *time.Time         `json:"endTime,omitempty"`
	StartLocation *location          `json:"startLocation,omitempty"`
	EndLocation   *location          `json:"endLocation,omitempty"`
	DistanceKm    *float64           `json:"distanceKm,omitempty"`
	Cost          *decimal.Decimal   `json:"cost,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}

func toReservationResponse(r reservation.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:            r.ID,
		BikeID:        r.BikeID,
		Status:        r.Status,
		StartLocation: toLocation(r.StartLocation),
		EndLocation:   toLocation(r.EndLocation),
		CreatedAt:     r.CreatedAt,
	}
	if r.StartTime.Valid {
		resp.StartTime = &r.StartTime.Time
	}
	if r.EndTime.Valid {
		resp.EndTime = &r.EndTime.Time
	}
	if r.DistanceKm.Valid {
		resp.DistanceKm = &r.DistanceKm.Float64
	}
	if r.Cost.Valid {
		resp.Cost = &r.Cost.Decimal
	}
	return resp
}

type createReservationRequest struct {
	BikeID string `json:"bikeId" binding:"required"`
}

func (a *API) createReservationHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}

	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	bikeID, err := uuid.Parse(req.BikeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ID", "message": "Invalid bikeId"})
		return
	}

	res := reservation.Reservation{
		ID:         uuid.New(),
		CustomerID: cust.ID,
		BikeID:     bikeID,
		Status:     reservation.StatusReserved,
	}
	err = a.rr.Create(c, &res)
	switch {
	case errors.Is(err, reservation.ErrBikeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "BIKE_NOT_FOUND", "message": "Bike not found"})
		return
	case errors.Is(err, reservation.ErrBikeUnavailable):
		c.JSON(http.StatusConflict, gin.H{"code": "BIKE_UNAVAILABLE", "message": "Bike is already reserved"})
		return
	case errors.Is(err, reservation.ErrActiveReservation):
		c.JSON(http.StatusConflict, gin.H{"code": "ACTIVE_RESERVATION", "message": "You already have an active reservation"})
		return
	case err != nil:
		internalError(c, "failed to create reservation", err)
		return
	}

	c.JSON(http.StatusCreated, toReservationResponse(res))
}

func (a *API) getReservationsHandler(c *gin.Context) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return
	}

	list, err := a.rr.ListByCustomer(c, cust.ID)
	if err != nil {
		internalError(c, "failed to list reservations", err)
		return
	}

	out := make([]reservationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, toReservationResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

// ownedReservation loads the :id reservation and checks the caller owns it.
func (a *API) ownedReservation(c *gin.Context) (reservation.Reservation, *customer.Customer, bool) {
	cust, ok := a.currentCustomer(c)
	if !ok {
		return reservation.Reservation{}, nil, false
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return reservation.Reservation{}, nil, false
	}

	res, err := a.rr.GetByID(c, id)
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "RESERVATION_NOT_FOUND", "message": "Reservation not found"})
			return reservation.Reservation{}, nil, false
		}
		internalError(c, "failed to get reservation", err)
		return reservation.Reservation{}, nil, false
	}

	if res.CustomerID != cust.ID {
		c.JSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "message": "Reservation belongs to another customer"})
		return reservation.Reservation{}, nil, false
	}
	return res, cust, true
}

func invalidState(c *gin.Context, status reservation.Status) {
	c.JSON(http.StatusConflict, gin.H{"code": "INVALID_STATE", "message": "Reservation is " + string(status)})
}

func (a *API) getReservationHandler(c *gin.Context) {
	res, _, ok := a.ownedReservation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (a *API) cancelReservationHandler(c *gin.Context) {
	res, _, ok := a.ownedReservation(c)
	if !ok {
		return
	}
	if res.Status != reservation.StatusReserved {
		invalidState(c, res.Status)
		return
	}

	res, err := a.rr.Cancel(c, res.ID)
	if errors.Is(err, reservation.ErrInvalidTransition) {
		c.JSON(http.StatusConflict, gin.H{"code": "INVALID_STATE", "message": "Reservation can no longer be cancelled"})
		return
	}
	if err != nil {
		internalError(c, "failed to cancel reservation", err)
		return
	}

	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (a *API) unlockCodeHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	res, cust, ok := a.ownedReservation(c)
	if !ok {
		return
	}
	if res.Status != reservation.StatusReserved {
		invalidState(c, res.Status)
		return
	}

	code, err := reservation.NewUnlockCode()
	if err != nil {
		internalError(c, "failed to generate unlock code", err)
		return
	}
	expiresAt := a.now().Add(reservation.UnlockCodeTTL)

	err = a.rr.SetUnlockCode(c, res.ID, code, expiresAt)
	if errors.Is(err, reservation.ErrInvalidTransition) {
		c.JSON(http.StatusConflict, gin.H{"code": "INVALID_STATE", "message": "Reservation is no longer reserved"})
		return
	}
	if err != nil {
		internalError(c, "failed to store unlock code", err)
		return
	}

	emailSent := false
	if a.mail != nil && cust.Email.Valid {
		var bikeName string
		if b, err := a.br.GetBike(c, res.BikeID); err == nil {
			bikeName = b.Name
		}
		err = a.mail.SendUnlockCode(c, mailer.UnlockCode{
			To:       cust.Email.String,
			Name:     cust.Name.String,
			Code:     code,
			BikeName: bikeName,
			ValidFor: "10 minutes",
		})
		if err != nil {
			logger.WarnContext(c, "failed to email unlock code", "reservationId", res.ID, "error", err)
		} else {
			emailSent = true
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"reservationId": res.ID,
		"expiresAt":     expiresAt,
		"emailSent":     emailSent,
	})
}

// sendLockCommand publishes a lock command without failing the request.
func (a *API) sendLockCommand(c *gin.Context, bikeID uuid.UUID, cmd lock.Command) bool {
	if a.locks == nil {
		middleware.GetLogger(c).WarnContext(c, "lock commands disabled", "bikeId", bikeID, "command", cmd)
		return false
	}
	if err := a.locks.Send(c, bikeID.String(), cmd); err != nil {
		middleware.GetLogger(c).ErrorContext(c, "failed to send lock command",
			"bikeId", bikeID, "command", cmd, "error", err)
		return false
	}
	return true
}

// unlockHandler opens the lock of the reservation's own bike. The stored
// lock state follows the request even when the broker could not be reached;
// commandSent tells the app whether to expect the lock to open.
func (a *API) unlockHandler(c *gin.Context) {
	res, _, ok := a.ownedReservation(c)
	if !ok {
		return
	}
	if !res.Status.Active() {
		invalidState(c, res.Status)
		return
	}

	sent := a.sendLockCommand(c, res.BikeID, lock.Unlock)

	err := a.br.SetLocked(c, res.BikeID, false)
	if err != nil {
		if errors.Is(err, bike.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "BIKE_NOT_FOUND", "message": "Bike not found"})
			return
		}
		internalError(c, "failed to update lock state", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reservationId": res.ID,
		"bikeId":        res.BikeID,
		"isLocked":      false,
		"commandSent":   sent,
	})
}

type startRideRequest struct {
	Code reservation.Code `json:"code" binding:"required"`
}

func (a *API) startRideHandler(c *gin.Context) {
	res, _, ok := a.ownedReservation(c)
	if !ok {
		return
	}

	var req startRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if res.Status != reservation.StatusReserved {
		invalidState(c, res.Status)
		return
	}

	switch err := res.CheckCode(req.Code, a.now()); {
	case errors.Is(err, reservation.ErrCodeExpired):
		c.JSON(http.StatusBadRequest, gin.H{"code": "CODE_EXPIRED", "message": "Unlock code has expired, request a new one"})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_CODE", "message": "Unlock code does not match"})
		return
	}

	b, err := a.br.GetBike(c, res.BikeID)
	if err != nil {
		internalError(c, "failed to get bike", err)
		return
	}

	started, err := a.rr.Start(c, res.ID, b.Location)
	if errors.Is(err, reservation.ErrInvalidTransition) {
		c.JSON(http.StatusConflict, gin.H{"code": "INVALID_STATE", "message": "Reservation is no longer reserved"})
		return
	}
	if err != nil {
		internalError(c, "failed to start ride", err)
		return
	}

	c.JSON(http.StatusOK, toReservationResponse(started))
}

type endRideResponse struct {
	reservationResponse
	PointsEarned int  `json:"pointsEarned"`
	CommandSent  bool `json:"commandSent"`
}

func (a *API) endRideHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	res, cust, ok := a.ownedReservation(c)
	if !ok {
		return
	}
	if res.Status != reservation.StatusInProgress {
		invalidState(c, res.Status)
		return
	}

	ctx, span := otel.Tracer("cyclechain/api").Start(c.Request.Context(), "endRide")
	defer span.End()
	span.SetAttributes(attribute.String("reservation.id", res.ID.String()))

	b, err := a.br.GetBike(ctx, res.BikeID)
	if err != nil {
		internalError(c, "failed to get bike", err)
		return
	}

	// TODO: replace the placeholder with the distance reported by the bike's tracker.
	distance := reservation.PlaceholderDistanceKm
	ended, err := a.rr.End(ctx, res.ID, reservation.Completion{
		EndLocation: b.Location,
		DistanceKm:  distance,
		Cost:        reservation.Cost(distance),
	})
	if errors.Is(err, reservation.ErrInvalidTransition) {
		c.JSON(http.StatusConflict, gin.H{"code": "INVALID_STATE", "message": "Ride is not in progress"})
		return
	}
	if err != nil {
		internalError(c, "failed to end ride", err)
		return
	}

	sent := a.sendLockCommand(c, res.BikeID, lock.Lock)

	points, err := a.loyalty.Award(ctx, cust.ID, distance)
	if err != nil {
		logger.ErrorContext(c, "failed to award loyalty points", "reservationId", res.ID, "error", err)
	}

	c.JSON(http.StatusOK, endRideResponse{
		reservationResponse: toReservationResponse(ended),
		PointsEarned:        points,
		CommandSent:         sent,
	})
}
