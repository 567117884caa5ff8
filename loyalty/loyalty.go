// Package loyalty derives reward points from ride history.
//
// The total is always recomputed from every completed ride rather than kept
// as a running ledger, so recalculating is idempotent.
package loyalty

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sanujarubasinghe/cyclechain/reservation"
)

type RideHistory interface {
	CompletedDistances(ctx context.Context, customerID uuid.UUID) ([]float64, error)
}

type PointsStore interface {
	SetLoyaltyPoints(ctx context.Context, customerID uuid.UUID, points int) error
	AddLoyaltyPoints(ctx context.Context, customerID uuid.UUID, points int) error
}

type Summary struct {
	Points         int     `json:"points"`
	CompletedRides int     `json:"completedRides"`
	TotalDistance  float64 `json:"totalDistanceKm"`
}

type Service struct {
	rides  RideHistory
	points PointsStore
}

func NewService(rides RideHistory, points PointsStore) *Service {
	return &Service{rides: rides, points: points}
}

// Recalculate sums floor(distance) over all completed rides and stores the result.
func (s *Service) Recalculate(ctx context.Context, customerID uuid.UUID) (Summary, error) {
	distances, err := s.rides.CompletedDistances(ctx, customerID)
	if err != nil {
		return Summary{}, fmt.Errorf("load ride history: %w", err)
	}

	var sum Summary
	for _, d := range distances {
		sum.Points += reservation.LoyaltyPoints(d)
		sum.TotalDistance += d
		sum.CompletedRides++
	}

	if err := s.points.SetLoyaltyPoints(ctx, customerID, sum.Points); err != nil {
		return Summary{}, fmt.Errorf("store loyalty points: %w", err)
	}
	return sum, nil
}

// Award adds the points earned by a single ride.
func (s *Service) Award(ctx context.Context, customerID uuid.UUID, distanceKm float64) (int, error) {
	points := reservation.LoyaltyPoints(distanceKm)
	if points == 0 {
		return 0, nil
	}
	if err := s.points.AddLoyaltyPoints(ctx, customerID, points); err != nil {
		return 0, err
	}
	return points, nil
}
