package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/oacdarts/tournament-engine/models"
)

var (
	ErrTournamentPlayerNotFound = errors.New("tournament player not found")
	ErrPlayerAlreadyRegistered  = errors.New("player is already registered for this tournament")
)

type TournamentPlayerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, player *models.TournamentPlayer) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentPlayer, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, statusFilter *models.PlayerStatus) ([]*models.TournamentPlayer, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.PlayerStatus) error
	AssignGroup(ctx context.Context, exec SQLExecutor, id int, groupID int) error
	SetGroupRank(ctx context.Context, exec SQLExecutor, id int, rank int) error
	// Finalize freezes the per-tournament snapshot: placement, status and stats in one write.
	Finalize(ctx context.Context, exec SQLExecutor, id int, placement int, status models.PlayerStatus, stats *models.PlayerStats) error
}

type postgresTournamentPlayerRepository struct {
	db *sql.DB
}

func NewPostgresTournamentPlayerRepository(db *sql.DB) TournamentPlayerRepository {
	return &postgresTournamentPlayerRepository{db: db}
}

func (r *postgresTournamentPlayerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentPlayerColumns = `id, tournament_id, player_id, status, seed, group_id, group_rank, final_placement, stats, created_at`

func (r *postgresTournamentPlayerRepository) Create(ctx context.Context, exec SQLExecutor, p *models.TournamentPlayer) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_players (tournament_id, player_id, status, seed)
		VALUES ($1, $2, $3,
			COALESCE((SELECT MAX(seed) FROM tournament_players WHERE tournament_id = $1), 0) + 1)
		RETURNING id, seed, created_at`
	err := executor.QueryRowContext(ctx, query, p.TournamentID, p.PlayerID, p.Status).
		Scan(&p.ID, &p.Seed, &p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrPlayerAlreadyRegistered
		}
		return fmt.Errorf("failed to create tournament player: %w", err)
	}
	return nil
}

func (r *postgresTournamentPlayerRepository) scanPlayer(row interface{ Scan(...interface{}) error }) (*models.TournamentPlayer, error) {
	p := &models.TournamentPlayer{}
	var statsRaw sql.NullString
	err := row.Scan(
		&p.ID, &p.TournamentID, &p.PlayerID, &p.Status, &p.Seed,
		&p.GroupID, &p.GroupRank, &p.FinalPlacement, &statsRaw, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament player: %w", err)
	}
	if statsRaw.Valid {
		p.StatsJSON = statsRaw.String
	}
	return p, nil
}

func (r *postgresTournamentPlayerRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentPlayer, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + tournamentPlayerColumns + ` FROM tournament_players WHERE id = $1`
	return r.scanPlayer(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentPlayerRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, statusFilter *models.PlayerStatus) ([]*models.TournamentPlayer, error) {
	executor := r.getExecutor(exec)

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + tournamentPlayerColumns + ` FROM tournament_players WHERE tournament_id = $1`)
	args := []interface{}{tournamentID}
	if statusFilter != nil {
		queryBuilder.WriteString(" AND status = $" + strconv.Itoa(len(args)+1))
		args = append(args, *statusFilter)
	}
	// Seed order is the registration order every deterministic ranking falls back to.
	queryBuilder.WriteString(" ORDER BY seed ASC")

	rows, err := executor.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournament players for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	players := make([]*models.TournamentPlayer, 0)
	for rows.Next() {
		p, scanErr := r.scanPlayer(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		players = append(players, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament player rows iteration: %w", err)
	}
	return players, nil
}

func (r *postgresTournamentPlayerRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.PlayerStatus) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE tournament_players SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament player %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentPlayerNotFound)
}

func (r *postgresTournamentPlayerRepository) AssignGroup(ctx context.Context, exec SQLExecutor, id int, groupID int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE tournament_players SET group_id = $1 WHERE id = $2`, groupID, id)
	if err != nil {
		return fmt.Errorf("failed to assign group for tournament player %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentPlayerNotFound)
}

func (r *postgresTournamentPlayerRepository) SetGroupRank(ctx context.Context, exec SQLExecutor, id int, rank int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE tournament_players SET group_rank = $1 WHERE id = $2`, rank, id)
	if err != nil {
		return fmt.Errorf("failed to set group rank for tournament player %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentPlayerNotFound)
}

func (r *postgresTournamentPlayerRepository) Finalize(ctx context.Context, exec SQLExecutor, id int, placement int, status models.PlayerStatus, stats *models.PlayerStats) error {
	executor := r.getExecutor(exec)
	raw, err := marshalJSON(stats)
	if err != nil {
		return err
	}
	query := `UPDATE tournament_players SET final_placement = $1, status = $2, stats = $3 WHERE id = $4`
	result, err := executor.ExecContext(ctx, query, placement, status, raw, id)
	if err != nil {
		return fmt.Errorf("failed to finalize tournament player %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentPlayerNotFound)
}
