package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sanujarubasinghe/cyclechain/station"
)

type stationResponse struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	Address        string       `json:"address"`
	OpeningHours   string       `json:"openingHours"`
	Lat            float64      `json:"latitude"`
	Lng            float64      `json:"longitude"`
	Type           station.Type `json:"type"`
	AvailableBikes int          `json:"availableBikes"`
}

func toStationResponse(s station.Station) stationResponse {
	return stationResponse{
		ID:             s.ID,
		Name:           s.Name,
		Address:        s.Address,
		OpeningHours:   s.OpeningHours,
		Type:           s.Type,
		Lat:            s.Location.P.X,
		Lng:            s.Location.P.Y,
		AvailableBikes: s.AvailableBikes,
	}
}

func (a *API) stationsHandler(c *gin.Context) {
	stations, err := a.sr.GetStations(c)
	if err != nil {
		internalError(c, "failed to list stations", err)
		return
	}

	out := make([]stationResponse, 0, len(stations))
	for _, s := range stations {
		out = append(out, toStationResponse(s))
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) stationHandler(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	s, err := a.sr.GetStation(c, id)
	if err != nil {
		if errors.Is(err, station.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "STATION_NOT_FOUND", "message": "Station not found"})
			return
		}
		internalError(c, "failed to get station", err)
		return
	}

	c.JSON(http.StatusOK, toStationResponse(s))
}
