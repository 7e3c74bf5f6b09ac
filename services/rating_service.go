package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oacdarts/tournament-engine/models"
	"github.com/oacdarts/tournament-engine/rating"
	"github.com/oacdarts/tournament-engine/repositories"
)

// replayConcurrency caps the parallel per-player replays of a full rebuild.
const replayConcurrency = 8

// PlayerRatingView is the read model returned to the API: current ratings
// plus the chronological history.
type PlayerRatingView struct {
	Rating  models.PlayerRating              `json:"rating"`
	History []*models.TournamentHistoryEntry `json:"history"`
}

// ReplayAllResult summarizes a full rebuild across every rated player.
type ReplayAllResult struct {
	Players  int              `json:"players"`
	Replayed int              `json:"replayed_entries"`
	Skipped  int              `json:"skipped_entries"`
	Warnings []rating.Warning `json:"warnings,omitempty"`
}

type RatingService interface {
	RatingApplier
	GetPlayerRating(ctx context.Context, playerID int) (*PlayerRatingView, error)
	// ReplayPlayer rebuilds one player's ratings and history deltas from the
	// fixed baseline, persisting the recomputed values. A non-nil asOfYear
	// replays only history up to and including that calendar year.
	ReplayPlayer(ctx context.Context, playerID int, asOfYear *int) (*rating.ReplayResult, error)
	ReplayAll(ctx context.Context) (*ReplayAllResult, error)
}

type ratingService struct {
	db         *sql.DB
	ratingRepo repositories.RatingRepository
	logger     *slog.Logger
}

func NewRatingService(db *sql.DB, ratingRepo repositories.RatingRepository, logger *slog.Logger) RatingService {
	return &ratingService{db: db, ratingRepo: ratingRepo, logger: logger}
}

func (s *ratingService) GetPlayerRating(ctx context.Context, playerID int) (*PlayerRatingView, error) {
	record, err := s.ratingRepo.GetRating(ctx, nil, playerID)
	if err != nil {
		if errors.Is(err, repositories.ErrRatingNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	history, err := s.ratingRepo.ListHistoryByPlayer(ctx, nil, playerID)
	if err != nil {
		return nil, err
	}
	return &PlayerRatingView{Rating: *record, History: history}, nil
}

// ApplyTournamentResults writes exactly one rating update and one history
// entry per participant. Already-recorded participants are skipped, which
// makes the tournament finish safe to retry.
func (s *ratingService) ApplyTournamentResults(ctx context.Context, tx *sql.Tx, t *models.Tournament, results []PlayerResult) error {
	cfg, err := t.ParseConfig()
	if err != nil {
		return err
	}
	totalParticipants := len(results)
	now := time.Now().UTC()

	for _, res := range results {
		exists, err := s.ratingRepo.HistoryExists(ctx, tx, res.PlayerID, t.ID)
		if err != nil {
			return err
		}
		if exists {
			s.logger.Warn("rating already applied, skipping",
				slog.Int("player_id", res.PlayerID), slog.Int("tournament_id", t.ID))
			continue
		}

		record, err := s.ratingRepo.GetRating(ctx, tx, res.PlayerID)
		if err != nil {
			if !errors.Is(err, repositories.ErrRatingNotFound) {
				return err
			}
			record = &models.PlayerRating{
				PlayerID:    res.PlayerID,
				MMR:         models.RatingBaseline,
				VerifiedMMR: models.RatingBaseline,
			}
		}

		history, err := s.ratingRepo.ListHistoryByPlayer(ctx, tx, res.PlayerID)
		if err != nil {
			return err
		}
		generalBaseline, verifiedBaseline := baselineAverages(history)

		in := rating.Input{
			Placement:         res.Placement,
			TotalParticipants: totalParticipants,
			Average:           res.Stats.Average,
			MatchesWon:        res.Stats.MatchesWon,
			Maximums:          res.Stats.Maximums,
			HighestCheckout:   res.Stats.HighestCheckout,
		}

		in.CurrentRating = record.MMR
		in.BaselineAverage = generalBaseline
		newMMR := rating.Change(in)

		verifiedDelta := 0
		if cfg.Verified && totalParticipants >= cfg.VerifiedMinField {
			in.CurrentRating = record.VerifiedMMR
			in.BaselineAverage = verifiedBaseline
			newVerified := rating.Change(in)
			verifiedDelta = newVerified - record.VerifiedMMR
			record.VerifiedMMR = newVerified
		}

		statsJSON, err := json.Marshal(res.Stats)
		if err != nil {
			return fmt.Errorf("failed to marshal stats for player %d: %w", res.PlayerID, err)
		}

		date := now
		entry := &models.TournamentHistoryEntry{
			PlayerID:          res.PlayerID,
			TournamentID:      t.ID,
			Date:              &date,
			StartDate:         &t.StartDate,
			Placement:         res.Placement,
			TotalParticipants: totalParticipants,
			Verified:          cfg.Verified,
			VerifiedMinField:  cfg.VerifiedMinField,
			StatsJSON:         string(statsJSON),
			MMRDelta:          newMMR - record.MMR,
			VerifiedMMRDelta:  verifiedDelta,
			SeasonYear:        date.Year(),
		}
		if err := s.ratingRepo.CreateHistoryEntry(ctx, tx, entry); err != nil {
			return err
		}

		record.MMR = newMMR
		if err := s.ratingRepo.UpsertRating(ctx, tx, record); err != nil {
			return err
		}
	}
	return nil
}

// baselineAverages computes the per-track mean of prior tournament averages.
// A track with no prior entries yields 0, which zeroes the performance term.
// Verified eligibility follows the threshold recorded on each entry, matching
// what a replay of the same history computes.
func baselineAverages(history []*models.TournamentHistoryEntry) (general, verified float64) {
	gSum, gCount := 0.0, 0
	vSum, vCount := 0.0, 0
	for _, e := range history {
		stats, err := e.ParseStats()
		if err != nil || stats == nil {
			continue
		}
		gSum += stats.Average
		gCount++
		if e.VerifiedEligible() {
			vSum += stats.Average
			vCount++
		}
	}
	if gCount > 0 {
		general = gSum / float64(gCount)
	}
	if vCount > 0 {
		verified = vSum / float64(vCount)
	}
	return general, verified
}

func (s *ratingService) ReplayPlayer(ctx context.Context, playerID int, asOfYear *int) (*rating.ReplayResult, error) {
	history, err := s.ratingRepo.ListHistoryByPlayer(ctx, nil, playerID)
	if err != nil {
		return nil, err
	}
	entries := make([]models.TournamentHistoryEntry, 0, len(history))
	for _, e := range history {
		if asOfYear != nil {
			if date, ok := e.EffectiveDate(); ok && date.Year() > *asOfYear {
				continue
			}
		}
		entries = append(entries, *e)
	}

	result := rating.Replay(entries)

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		updated := make([]*models.TournamentHistoryEntry, len(result.Entries))
		for i := range result.Entries {
			updated[i] = &result.Entries[i]
		}
		if err := s.ratingRepo.ReplaceHistoryDeltas(ctx, tx, updated); err != nil {
			return err
		}
		return s.ratingRepo.UpsertRating(ctx, tx, &models.PlayerRating{
			PlayerID:    playerID,
			MMR:         result.MMR,
			VerifiedMMR: result.VerifiedMMR,
		})
	})
	if err != nil {
		return nil, err
	}

	for _, w := range result.Warnings {
		s.logger.Warn("replay skipped a history entry",
			slog.Int("player_id", playerID),
			slog.Int("tournament_id", w.TournamentID),
			slog.String("reason", w.Reason))
	}
	s.logger.Info("player ratings replayed",
		slog.Int("player_id", playerID),
		slog.Int("replayed", result.Replayed),
		slog.Int("skipped", result.Skipped),
		slog.Int("mmr", result.MMR),
		slog.Int("verified_mmr", result.VerifiedMMR))
	return &result, nil
}

// ReplayAll rebuilds every rated player in parallel. Each player's replay is
// independent, so cross-player fan-out is safe.
func (s *ratingService) ReplayAll(ctx context.Context) (*ReplayAllResult, error) {
	playerIDs, err := s.ratingRepo.ListRatedPlayerIDs(ctx, nil)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	total := &ReplayAllResult{Players: len(playerIDs)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(replayConcurrency)
	for _, playerID := range playerIDs {
		playerID := playerID
		g.Go(func() error {
			result, err := s.ReplayPlayer(gctx, playerID, nil)
			if err != nil {
				return fmt.Errorf("replay of player %d failed: %w", playerID, err)
			}
			mu.Lock()
			total.Replayed += result.Replayed
			total.Skipped += result.Skipped
			total.Warnings = append(total.Warnings, result.Warnings...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return total, nil
}
