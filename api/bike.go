package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sanujarubasinghe/cyclechain/bike"
)

type bikeResponse struct {
	ID           uuid.UUID       `json:"id"`
	Label        string          `json:"label"`
	Name         string          `json:"name"`
	Type         bike.Type       `json:"type"`
	Location     *location       `json:"location,omitempty"`
	IsLocked     bool            `json:"isLocked"`
	Available    bool            `json:"available"`
	BatteryLevel int             `json:"batteryLevel"`
	PricePerKm   decimal.Decimal `json:"pricePerKm"`
	StationID    *uuid.UUID      `json:"stationId,omitempty"`
	ImageURL     *string         `json:"imageUrl,omitempty"`
}

func toBikeResponse(b bike.Bike) bikeResponse {
	return bikeResponse{
		ID:           b.ID,
		Label:        b.Label,
		Name:         b.Name,
		Type:         b.Type,
		Location:     toLocation(b.Location),
		IsLocked:     b.IsLocked,
		Available:    b.Available,
		BatteryLevel: b.BatteryLevel,
		PricePerKm:   b.PricePerKm,
		StationID:    b.StationID,
		ImageURL:     b.ImageURL,
	}
}

// bikesHandler lists bikes. ?stationId narrows to one station, ?label looks
// up the bike whose sticker was scanned.
func (a *API) bikesHandler(c *gin.Context) {
	if label := c.Query("label"); label != "" {
		b, err := a.br.GetBikeByLabel(c, label)
		if errors.Is(err, bike.ErrNotFound) {
			c.JSON(http.StatusOK, []bikeResponse{})
			return
		}
		if err != nil {
			internalError(c, "failed to get bike by label", err)
			return
		}
		c.JSON(http.StatusOK, []bikeResponse{toBikeResponse(b)})
		return
	}

	var stationID *uuid.UUID
	if s := c.Query("stationId"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ID", "message": "Invalid stationId"})
			return
		}
		stationID = &id
	}

	bikes, err := a.br.GetBikes(c, stationID)
	if err != nil {
		internalError(c, "failed to list bikes", err)
		return
	}

	out := make([]bikeResponse, 0, len(bikes))
	for _, b := range bikes {
		out = append(out, toBikeResponse(b))
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) bikeHandler(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	b, err := a.br.GetBike(c, id)
	if err != nil {
		if errors.Is(err, bike.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "BIKE_NOT_FOUND", "message": "Bike not found"})
			return
		}
		internalError(c, "failed to get bike", err)
		return
	}

	c.JSON(http.StatusOK, toBikeResponse(b))
}
