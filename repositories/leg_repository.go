package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oacdarts/tournament-engine/models"
)

var ErrLegNotFound = errors.New("leg not found")

type LegRepository interface {
	Create(ctx context.Context, exec SQLExecutor, leg *models.Leg) error
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.Leg, error)
}

type postgresLegRepository struct {
	db *sql.DB
}

func NewPostgresLegRepository(db *sql.DB) LegRepository {
	return &postgresLegRepository{db: db}
}

func (r *postgresLegRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func nonNilVisits(v []models.Visit) []models.Visit {
	if v == nil {
		return []models.Visit{}
	}
	return v
}

func (r *postgresLegRepository) Create(ctx context.Context, exec SQLExecutor, leg *models.Leg) error {
	executor := r.getExecutor(exec)

	// Visits are jsonb arrays, so a missing side still stores [].
	p1Visits, err := marshalJSON(nonNilVisits(leg.Player1Visits))
	if err != nil {
		return err
	}
	p2Visits, err := marshalJSON(nonNilVisits(leg.Player2Visits))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO legs (
			match_id, number, winner_side, checkout_score, checkout_darts,
			player1_visits, player2_visits
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	err = executor.QueryRowContext(ctx, query,
		leg.MatchID, leg.Number, int(leg.WinnerSide), leg.CheckoutScore, leg.CheckoutDarts,
		p1Visits, p2Visits,
	).Scan(&leg.ID, &leg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create leg %d for match %d: %w", leg.Number, leg.MatchID, err)
	}
	return nil
}

func (r *postgresLegRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.Leg, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, match_id, number, winner_side, checkout_score, checkout_darts,
		       player1_visits, player2_visits, created_at
		FROM legs
		WHERE match_id = $1
		ORDER BY number ASC`
	rows, err := executor.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query legs for match %d: %w", matchID, err)
	}
	defer rows.Close()

	legs := make([]models.Leg, 0)
	for rows.Next() {
		var leg models.Leg
		var winnerSide int
		var p1Visits, p2Visits string
		scanErr := rows.Scan(
			&leg.ID, &leg.MatchID, &leg.Number, &winnerSide, &leg.CheckoutScore, &leg.CheckoutDarts,
			&p1Visits, &p2Visits, &leg.CreatedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan leg row: %w", scanErr)
		}
		leg.WinnerSide = models.Side(winnerSide)
		if err := unmarshalJSON(p1Visits, &leg.Player1Visits); err != nil {
			return nil, fmt.Errorf("failed to unmarshal player1 visits for leg %d: %w", leg.ID, err)
		}
		if err := unmarshalJSON(p2Visits, &leg.Player2Visits); err != nil {
			return nil, fmt.Errorf("failed to unmarshal player2 visits for leg %d: %w", leg.ID, err)
		}
		legs = append(legs, leg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during leg rows iteration: %w", err)
	}
	return legs, nil
}
