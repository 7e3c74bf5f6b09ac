package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oacdarts/tournament-engine/models"
)

var ErrRatingNotFound = errors.New("player rating not found")

type RatingRepository interface {
	GetRating(ctx context.Context, exec SQLExecutor, playerID int) (*models.PlayerRating, error)
	UpsertRating(ctx context.Context, exec SQLExecutor, rating *models.PlayerRating) error
	ListRatedPlayerIDs(ctx context.Context, exec SQLExecutor) ([]int, error)

	CreateHistoryEntry(ctx context.Context, exec SQLExecutor, entry *models.TournamentHistoryEntry) error
	ListHistoryByPlayer(ctx context.Context, exec SQLExecutor, playerID int) ([]*models.TournamentHistoryEntry, error)
	HistoryExists(ctx context.Context, exec SQLExecutor, playerID, tournamentID int) (bool, error)
	ReplaceHistoryDeltas(ctx context.Context, exec SQLExecutor, entries []*models.TournamentHistoryEntry) error
}

type postgresRatingRepository struct {
	db *sql.DB
}

func NewPostgresRatingRepository(db *sql.DB) RatingRepository {
	return &postgresRatingRepository{db: db}
}

func (r *postgresRatingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRatingRepository) GetRating(ctx context.Context, exec SQLExecutor, playerID int) (*models.PlayerRating, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT player_id, mmr, verified_mmr, updated_at
		FROM player_ratings
		WHERE player_id = $1`
	rating := &models.PlayerRating{}
	err := executor.QueryRowContext(ctx, query, playerID).
		Scan(&rating.PlayerID, &rating.MMR, &rating.VerifiedMMR, &rating.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("failed to get rating for player %d: %w", playerID, err)
	}
	return rating, nil
}

func (r *postgresRatingRepository) UpsertRating(ctx context.Context, exec SQLExecutor, rating *models.PlayerRating) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO player_ratings (player_id, mmr, verified_mmr, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (player_id)
		DO UPDATE SET mmr = EXCLUDED.mmr, verified_mmr = EXCLUDED.verified_mmr, updated_at = NOW()
		RETURNING updated_at`
	err := executor.QueryRowContext(ctx, query, rating.PlayerID, rating.MMR, rating.VerifiedMMR).
		Scan(&rating.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert rating for player %d: %w", rating.PlayerID, err)
	}
	return nil
}

func (r *postgresRatingRepository) ListRatedPlayerIDs(ctx context.Context, exec SQLExecutor) ([]int, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, `SELECT player_id FROM player_ratings ORDER BY player_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rated player ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("failed to scan rated player id: %w", scanErr)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rated player rows iteration: %w", err)
	}
	return ids, nil
}

const historyColumns = `
	id, player_id, tournament_id, date, start_date, placement, total_participants,
	verified, verified_min_field, stats, mmr_delta, verified_mmr_delta, season_year, created_at`

func scanHistoryEntry(scanner interface{ Scan(...interface{}) error }) (*models.TournamentHistoryEntry, error) {
	e := &models.TournamentHistoryEntry{}
	err := scanner.Scan(
		&e.ID, &e.PlayerID, &e.TournamentID, &e.Date, &e.StartDate, &e.Placement,
		&e.TotalParticipants, &e.Verified, &e.VerifiedMinField, &e.StatsJSON, &e.MMRDelta,
		&e.VerifiedMMRDelta, &e.SeasonYear, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *postgresRatingRepository) CreateHistoryEntry(ctx context.Context, exec SQLExecutor, e *models.TournamentHistoryEntry) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_history (
			player_id, tournament_id, date, start_date, placement,
			total_participants, verified, verified_min_field, stats,
			mmr_delta, verified_mmr_delta, season_year
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`
	err := executor.QueryRowContext(ctx, query,
		e.PlayerID, e.TournamentID, e.Date, e.StartDate, e.Placement,
		e.TotalParticipants, e.Verified, e.VerifiedMinField, e.StatsJSON,
		e.MMRDelta, e.VerifiedMMRDelta, e.SeasonYear,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create history entry for player %d tournament %d: %w", e.PlayerID, e.TournamentID, err)
	}
	return nil
}

// ListHistoryByPlayer returns entries in stable chronological order, with
// undated imports first so replay can surface them as warnings.
func (r *postgresRatingRepository) ListHistoryByPlayer(ctx context.Context, exec SQLExecutor, playerID int) ([]*models.TournamentHistoryEntry, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT ` + historyColumns + `
		FROM tournament_history
		WHERE player_id = $1
		ORDER BY COALESCE(date, start_date) ASC NULLS FIRST, id ASC`
	rows, err := executor.QueryContext(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for player %d: %w", playerID, err)
	}
	defer rows.Close()

	entries := make([]*models.TournamentHistoryEntry, 0)
	for rows.Next() {
		e, scanErr := scanHistoryEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during history rows iteration: %w", err)
	}
	return entries, nil
}

func (r *postgresRatingRepository) HistoryExists(ctx context.Context, exec SQLExecutor, playerID, tournamentID int) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT EXISTS (
			SELECT 1 FROM tournament_history WHERE player_id = $1 AND tournament_id = $2
		)`
	var exists bool
	if err := executor.QueryRowContext(ctx, query, playerID, tournamentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check history for player %d tournament %d: %w", playerID, tournamentID, err)
	}
	return exists, nil
}

// ReplaceHistoryDeltas rewrites the replay-derived columns of existing
// entries. It never touches the recorded results themselves.
func (r *postgresRatingRepository) ReplaceHistoryDeltas(ctx context.Context, exec SQLExecutor, entries []*models.TournamentHistoryEntry) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_history
		SET mmr_delta = $1, verified_mmr_delta = $2, season_year = $3
		WHERE id = $4`
	for _, e := range entries {
		result, err := executor.ExecContext(ctx, query, e.MMRDelta, e.VerifiedMMRDelta, e.SeasonYear, e.ID)
		if err != nil {
			return fmt.Errorf("failed to update history entry %d: %w", e.ID, err)
		}
		if err := checkAffectedRows(result, fmt.Errorf("history entry %d vanished during replay", e.ID)); err != nil {
			return err
		}
	}
	return nil
}
