package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/oacdarts/tournament-engine/models"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchVersionConflict signals that a concurrent writer got there first.
	// Callers reload the match and retry.
	ErrMatchVersionConflict = errors.New("match was modified concurrently")
)

// MatchFilter narrows ListByTournament. Zero value lists everything.
type MatchFilter struct {
	GroupID      *int
	KnockoutOnly bool
	Status       models.MatchStatus
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, filter MatchFilter) ([]*models.Match, error)
	SetBracketLink(ctx context.Context, exec SQLExecutor, id int, nextMatchID int, winnerToSlot int) error
	SetPlayerSlot(ctx context.Context, exec SQLExecutor, id int, slot models.Side, playerID int) error
	UpdateScoring(ctx context.Context, exec SQLExecutor, match *models.Match) error
	CountUnfinishedGroupMatches(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, group_id, round, order_in_round, bracket_uid,
	board_number, player1_id, player2_id, legs_to_win, starting_side,
	status, winner_player_id, walkover, next_match_id, winner_to_slot,
	player1_stats, player2_stats, version, created_at`

func scanMatch(scanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	m := &models.Match{}
	var startingSide sql.NullInt64
	var p1Stats, p2Stats string
	err := scanner.Scan(
		&m.ID, &m.TournamentID, &m.GroupID, &m.Round, &m.OrderInRound, &m.BracketUID,
		&m.BoardNumber, &m.Player1ID, &m.Player2ID, &m.LegsToWin, &startingSide,
		&m.Status, &m.WinnerPlayerID, &m.Walkover, &m.NextMatchID, &m.WinnerToSlot,
		&p1Stats, &p2Stats, &m.Version, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if startingSide.Valid {
		side := models.Side(startingSide.Int64)
		m.StartingSide = &side
	}
	if err := unmarshalJSON(p1Stats, &m.Player1Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player1 stats for match %d: %w", m.ID, err)
	}
	if err := unmarshalJSON(p2Stats, &m.Player2Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player2 stats for match %d: %w", m.ID, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	executor := r.getExecutor(exec)

	p1Stats, err := marshalJSON(m.Player1Stats)
	if err != nil {
		return err
	}
	p2Stats, err := marshalJSON(m.Player2Stats)
	if err != nil {
		return err
	}

	var startingSide interface{}
	if m.StartingSide != nil {
		startingSide = int(*m.StartingSide)
	}

	query := `
		INSERT INTO matches (
			tournament_id, group_id, round, order_in_round, bracket_uid,
			board_number, player1_id, player2_id, legs_to_win, starting_side,
			status, walkover, player1_stats, player2_stats
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, version, created_at`
	err = executor.QueryRowContext(ctx, query,
		m.TournamentID, m.GroupID, m.Round, m.OrderInRound, m.BracketUID,
		m.BoardNumber, m.Player1ID, m.Player2ID, m.LegsToWin, startingSide,
		m.Status, m.Walkover, p1Stats, p2Stats,
	).Scan(&m.ID, &m.Version, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create match for tournament %d: %w", m.TournamentID, err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	m, err := scanMatch(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, filter MatchFilter) ([]*models.Match, error) {
	executor := r.getExecutor(exec)

	var query strings.Builder
	query.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`)
	args := []interface{}{tournamentID}

	if filter.GroupID != nil {
		args = append(args, *filter.GroupID)
		query.WriteString(fmt.Sprintf(" AND group_id = $%d", len(args)))
	}
	if filter.KnockoutOnly {
		query.WriteString(" AND round IS NOT NULL")
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query.WriteString(fmt.Sprintf(" AND status = $%d", len(args)))
	}
	query.WriteString(" ORDER BY round ASC NULLS FIRST, order_in_round ASC NULLS FIRST, id ASC")

	rows, err := executor.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) SetBracketLink(ctx context.Context, exec SQLExecutor, id int, nextMatchID int, winnerToSlot int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET next_match_id = $1, winner_to_slot = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, nextMatchID, winnerToSlot, id)
	if err != nil {
		return fmt.Errorf("failed to set bracket link on match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetPlayerSlot(ctx context.Context, exec SQLExecutor, id int, slot models.Side, playerID int) error {
	executor := r.getExecutor(exec)
	column := "player1_id"
	if slot == models.SideTwo {
		column = "player2_id"
	}
	query := fmt.Sprintf(`UPDATE matches SET %s = $1 WHERE id = $2`, column)
	result, err := executor.ExecContext(ctx, query, playerID, id)
	if err != nil {
		return fmt.Errorf("failed to set slot %d on match %d: %w", slot, id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// UpdateScoring writes the scoring-mutable part of the match guarded by its
// version. A zero-row update means another writer bumped the version first.
func (r *postgresMatchRepository) UpdateScoring(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	executor := r.getExecutor(exec)

	p1Stats, err := marshalJSON(m.Player1Stats)
	if err != nil {
		return err
	}
	p2Stats, err := marshalJSON(m.Player2Stats)
	if err != nil {
		return err
	}

	var startingSide interface{}
	if m.StartingSide != nil {
		startingSide = int(*m.StartingSide)
	}

	query := `
		UPDATE matches
		SET status = $1,
		    winner_player_id = $2,
		    walkover = $3,
		    legs_to_win = $4,
		    starting_side = $5,
		    player1_stats = $6,
		    player2_stats = $7,
		    version = version + 1
		WHERE id = $8 AND version = $9`
	result, err := executor.ExecContext(ctx, query,
		m.Status, m.WinnerPlayerID, m.Walkover, m.LegsToWin, startingSide,
		p1Stats, p2Stats, m.ID, m.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update scoring on match %d: %w", m.ID, err)
	}
	if err := checkAffectedRows(result, ErrMatchVersionConflict); err != nil {
		return err
	}
	m.Version++
	return nil
}

func (r *postgresMatchRepository) CountUnfinishedGroupMatches(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT COUNT(*) FROM matches
		WHERE tournament_id = $1 AND group_id IS NOT NULL AND status <> $2`
	var count int
	err := executor.QueryRowContext(ctx, query, tournamentID, models.MatchFinished).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unfinished group matches for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}
