package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oacdarts/tournament-engine/models"
)

var ErrGroupNotFound = errors.New("group not found")

type GroupRepository interface {
	Create(ctx context.Context, exec SQLExecutor, group *models.Group) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Group, error)
}

type postgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) GroupRepository {
	return &postgresGroupRepository{db: db}
}

func (r *postgresGroupRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresGroupRepository) Create(ctx context.Context, exec SQLExecutor, g *models.Group) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO groups (tournament_id, number, board_number)
		VALUES ($1, $2, $3)
		RETURNING id`
	err := executor.QueryRowContext(ctx, query, g.TournamentID, g.Number, g.BoardNumber).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("failed to create group %d for tournament %d: %w", g.Number, g.TournamentID, err)
	}
	return nil
}

func (r *postgresGroupRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Group, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, number, board_number
		FROM groups
		WHERE tournament_id = $1
		ORDER BY number ASC`
	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	groups := make([]*models.Group, 0)
	for rows.Next() {
		g := &models.Group{}
		if scanErr := rows.Scan(&g.ID, &g.TournamentID, &g.Number, &g.BoardNumber); scanErr != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", scanErr)
		}
		groups = append(groups, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during group rows iteration: %w", err)
	}
	return groups, nil
}
