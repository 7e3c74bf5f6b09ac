package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oacdarts/tournament-engine/models"
	"github.com/oacdarts/tournament-engine/repositories"
	"github.com/oacdarts/tournament-engine/scoring"
)

// scoringRetries bounds the optimistic-lock retry loop of a scoring write.
const scoringRetries = 3

// Broadcaster pushes live match events to connected spectators. The live hub
// implements it; a nil-safe no-op is used in tests.
type Broadcaster interface {
	BroadcastToTournament(tournamentID int, event interface{})
}

// MatchEvent is the payload pushed over the live channel after every scoring write.
type MatchEvent struct {
	Type  string        `json:"type"`
	Match *models.Match `json:"match"`
	Leg   *models.Leg   `json:"leg,omitempty"`
}

type RecordLegInput struct {
	WinnerSide    models.Side    `json:"winner_side"`
	Player1Visits []models.Visit `json:"player1_visits"`
	Player2Visits []models.Visit `json:"player2_visits"`
	WinningDarts  int            `json:"winning_darts"`
}

type MatchService interface {
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	// StartMatch begins play. A positive legsToWin overrides the value the
	// phase configured on the match row; zero keeps it.
	StartMatch(ctx context.Context, id int, legsToWin int, startingSide models.Side) (*models.Match, error)
	RecordLeg(ctx context.Context, id int, input RecordLegInput) (*models.Match, error)
	// FinishMatch forces the terminal state, for manual correction or a
	// walkover. Repeating the same result is a no-op.
	FinishMatch(ctx context.Context, id int, legsWonP1, legsWonP2 int, winner models.Side) (*models.Match, error)
}

type matchService struct {
	db          *sql.DB
	matchRepo   repositories.MatchRepository
	legRepo     repositories.LegRepository
	propagator  WinnerPropagator
	broadcaster Broadcaster
	logger      *slog.Logger
}

// WinnerPropagator advances finished knockout matches; the knockout service
// implements it.
type WinnerPropagator interface {
	PropagateWinner(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error
}

func NewMatchService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	legRepo repositories.LegRepository,
	propagator WinnerPropagator,
	broadcaster Broadcaster,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		db:          db,
		matchRepo:   matchRepo,
		legRepo:     legRepo,
		propagator:  propagator,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	legs, err := s.legRepo.ListByMatch(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	m.Legs = legs
	return m, nil
}

func (s *matchService) StartMatch(ctx context.Context, id int, legsToWin int, startingSide models.Side) (*models.Match, error) {
	var started *models.Match
	err := s.withScoringRetry(ctx, id, func(m *models.Match) error {
		if err := scoring.Start(m, effectiveLegsToWin(legsToWin, m.LegsToWin), startingSide); err != nil {
			return mapScoringError(err)
		}
		started = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.broadcast(started, &MatchEvent{Type: "match_started", Match: started})
	return started, nil
}

func (s *matchService) RecordLeg(ctx context.Context, id int, input RecordLegInput) (*models.Match, error) {
	var updated *models.Match
	var recorded *models.Leg
	err := s.withScoringRetryTx(ctx, id, func(tx *sql.Tx, m *models.Match) error {
		leg, err := scoring.RecordLeg(m, scoring.LegInput{
			WinnerSide:    input.WinnerSide,
			Player1Visits: input.Player1Visits,
			Player2Visits: input.Player2Visits,
			WinningDarts:  input.WinningDarts,
		})
		if err != nil {
			return mapScoringError(err)
		}
		if err := s.legRepo.Create(ctx, tx, leg); err != nil {
			return err
		}
		if err := s.matchRepo.UpdateScoring(ctx, tx, m); err != nil {
			return err
		}
		if m.Status == models.MatchFinished {
			if err := s.propagator.PropagateWinner(ctx, tx, m); err != nil {
				return err
			}
		}
		updated, recorded = m, leg
		return nil
	})
	if err != nil {
		return nil, err
	}
	eventType := "leg_recorded"
	if updated.Status == models.MatchFinished {
		eventType = "match_finished"
	}
	s.broadcast(updated, &MatchEvent{Type: eventType, Match: updated, Leg: recorded})
	return updated, nil
}

func (s *matchService) FinishMatch(ctx context.Context, id int, legsWonP1, legsWonP2 int, winner models.Side) (*models.Match, error) {
	var updated *models.Match
	alreadyFinished := false
	err := s.withScoringRetryTx(ctx, id, func(tx *sql.Tx, m *models.Match) error {
		if m.Status == models.MatchFinished {
			// Idempotence check only, nothing to write.
			if err := scoring.ForceFinish(m, legsWonP1, legsWonP2, winner); err != nil {
				return mapScoringError(err)
			}
			alreadyFinished = true
			updated = m
			return nil
		}
		if err := scoring.ForceFinish(m, legsWonP1, legsWonP2, winner); err != nil {
			return mapScoringError(err)
		}
		if err := s.matchRepo.UpdateScoring(ctx, tx, m); err != nil {
			return err
		}
		if err := s.propagator.PropagateWinner(ctx, tx, m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !alreadyFinished {
		s.broadcast(updated, &MatchEvent{Type: "match_finished", Match: updated})
	}
	return updated, nil
}

// effectiveLegsToWin prefers an explicit per-match override over the value
// configured when the match row was created.
func effectiveLegsToWin(requested, configured int) int {
	if requested > 0 {
		return requested
	}
	return configured
}

// withScoringRetry reloads and reapplies fn when a concurrent writer bumps
// the match version first.
func (s *matchService) withScoringRetry(ctx context.Context, id int, fn func(m *models.Match) error) error {
	return s.withScoringRetryTx(ctx, id, func(tx *sql.Tx, m *models.Match) error {
		if err := fn(m); err != nil {
			return err
		}
		return s.matchRepo.UpdateScoring(ctx, tx, m)
	})
}

func (s *matchService) withScoringRetryTx(ctx context.Context, id int, fn func(tx *sql.Tx, m *models.Match) error) error {
	var lastErr error
	for attempt := 0; attempt < scoringRetries; attempt++ {
		m, err := s.matchRepo.GetByID(ctx, nil, id)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		legs, err := s.legRepo.ListByMatch(ctx, nil, id)
		if err != nil {
			return err
		}
		m.Legs = legs

		err = withTx(ctx, s.db, func(tx *sql.Tx) error {
			return fn(tx, m)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, repositories.ErrMatchVersionConflict) {
			return err
		}
		lastErr = err
		s.logger.Warn("scoring write lost the version race, retrying",
			slog.Int("match_id", id), slog.Int("attempt", attempt+1))
	}
	return fmt.Errorf("%w: %v", ErrConcurrentUpdate, lastErr)
}

func (s *matchService) broadcast(m *models.Match, event *MatchEvent) {
	if s.broadcaster == nil || m == nil {
		return
	}
	s.broadcaster.BroadcastToTournament(m.TournamentID, event)
}

func mapScoringError(err error) error {
	switch {
	case errors.Is(err, scoring.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", ErrInvalidMatchTransition, err)
	case errors.Is(err, scoring.ErrInvalidLeg):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	default:
		return err
	}
}
