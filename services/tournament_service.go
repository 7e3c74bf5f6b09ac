package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oacdarts/tournament-engine/models"
	"github.com/oacdarts/tournament-engine/repositories"
)

type CreateTournamentInput struct {
	ClubID    int
	Name      string
	StartDate time.Time
	Config    models.TournamentConfig
}

type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	ListTournaments(ctx context.Context, status *models.TournamentStatus, limit, offset int) ([]*models.Tournament, error)
	RegisterPlayer(ctx context.Context, tournamentID, playerID int) (*models.TournamentPlayer, error)
	UpdatePlayerStatus(ctx context.Context, entryID int, status models.PlayerStatus) error
	CancelTournament(ctx context.Context, id int) error
	FinishTournament(ctx context.Context, id int) (*models.Tournament, error)
}

type tournamentService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	playerRepo     repositories.TournamentPlayerRepository
	groupRepo      repositories.GroupRepository
	matchRepo      repositories.MatchRepository
	ratings        RatingApplier
	permissions    ClubPermissionChecker
	logger         *slog.Logger
}

// RatingApplier decouples tournament finalization from the rating engine.
type RatingApplier interface {
	ApplyTournamentResults(ctx context.Context, tx *sql.Tx, tournament *models.Tournament, results []PlayerResult) error
}

// ClubPermissionChecker answers whether a club may open a new tournament.
// Subscription and quota rules live outside the engine; only the verdict and
// its reason come back.
type ClubPermissionChecker interface {
	CanCreateTournament(ctx context.Context, clubID int, verified bool) (bool, string, error)
}

// PlayerResult is the frozen outcome of one player in one tournament, handed
// to the rating engine at finish time.
type PlayerResult struct {
	PlayerID  int
	EntryID   int
	Placement int
	Stats     models.PlayerStats
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	playerRepo repositories.TournamentPlayerRepository,
	groupRepo repositories.GroupRepository,
	matchRepo repositories.MatchRepository,
	ratings RatingApplier,
	permissions ClubPermissionChecker,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:             db,
		tournamentRepo: tournamentRepo,
		playerRepo:     playerRepo,
		groupRepo:      groupRepo,
		matchRepo:      matchRepo,
		ratings:        ratings,
		permissions:    permissions,
		logger:         logger,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}
	cfg := input.Config
	if cfg.MaxPlayers <= 0 {
		return nil, fmt.Errorf("%w: max players must be positive", ErrValidationFailed)
	}
	if cfg.MinPlayers < 2 {
		return nil, fmt.Errorf("%w: at least 2 players are required", ErrValidationFailed)
	}
	if cfg.StartingScore <= 0 {
		cfg.StartingScore = 501
	}
	if cfg.GroupCount <= 0 {
		return nil, fmt.Errorf("%w: group count must be positive", ErrValidationFailed)
	}
	if cfg.GroupLegsToWin <= 0 || cfg.KnockoutLegsToWin <= 0 {
		return nil, fmt.Errorf("%w: legs to win must be positive", ErrValidationFailed)
	}
	if cfg.QualifiersPerGroup < 1 {
		return nil, fmt.Errorf("%w: at least one qualifier per group is required", ErrValidationFailed)
	}
	if cfg.BoardCount <= 0 {
		return nil, fmt.Errorf("%w: board count must be positive", ErrValidationFailed)
	}
	if cfg.BoardCount < cfg.GroupCount {
		return nil, fmt.Errorf("%w: %d boards cannot host %d groups one per board",
			ErrValidationFailed, cfg.BoardCount, cfg.GroupCount)
	}
	if cfg.Verified && cfg.Sandbox {
		return nil, fmt.Errorf("%w: a sandbox tournament cannot be verified", ErrValidationFailed)
	}
	if cfg.VerifiedMinField <= 0 {
		cfg.VerifiedMinField = models.DefaultVerifiedMinField
	}

	allowed, reason, err := s.permissions.CanCreateTournament(ctx, input.ClubID, cfg.Verified)
	if err != nil {
		return nil, fmt.Errorf("failed to check club permission: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbiddenOperation, reason)
	}

	t := &models.Tournament{
		ClubID:    input.ClubID,
		Name:      input.Name,
		Status:    models.StatusPending,
		StartDate: input.StartDate,
		Config:    &cfg,
	}
	if err := s.tournamentRepo.Create(ctx, nil, t); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		return nil, err
	}
	s.logger.Info("tournament created", slog.Int("tournament_id", t.ID), slog.String("name", t.Name))
	return t, nil
}

// GetTournament loads the tournament and fans out the detail queries.
func (s *tournamentService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if _, err := t.ParseConfig(); err != nil {
		return nil, fmt.Errorf("failed to parse config of tournament %d: %w", id, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		players, err := s.playerRepo.ListByTournament(gctx, nil, id, nil)
		if err != nil {
			return err
		}
		t.Players = make([]models.TournamentPlayer, len(players))
		for i, p := range players {
			t.Players[i] = *p
		}
		return nil
	})
	g.Go(func() error {
		groups, err := s.groupRepo.ListByTournament(gctx, nil, id)
		if err != nil {
			return err
		}
		t.Groups = make([]models.Group, len(groups))
		for i, grp := range groups {
			t.Groups[i] = *grp
		}
		return nil
	})
	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gctx, nil, id, repositories.MatchFilter{})
		if err != nil {
			return err
		}
		t.Matches = make([]models.Match, len(matches))
		for i, m := range matches {
			t.Matches[i] = *m
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load details of tournament %d: %w", id, err)
	}

	// Attach matches and players to their groups for presentation.
	byGroup := make(map[int]*models.Group, len(t.Groups))
	for i := range t.Groups {
		byGroup[t.Groups[i].ID] = &t.Groups[i]
	}
	for _, m := range t.Matches {
		if m.GroupID != nil {
			if grp, ok := byGroup[*m.GroupID]; ok {
				grp.Matches = append(grp.Matches, m)
			}
		}
	}
	for _, p := range t.Players {
		if p.GroupID != nil {
			if grp, ok := byGroup[*p.GroupID]; ok {
				grp.PlayerIDs = append(grp.PlayerIDs, p.PlayerID)
			}
		}
	}
	return t, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, status *models.TournamentStatus, limit, offset int) ([]*models.Tournament, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.tournamentRepo.List(ctx, status, limit, offset)
}

func (s *tournamentService) RegisterPlayer(ctx context.Context, tournamentID, playerID int) (*models.TournamentPlayer, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if t.Canceled {
		return nil, ErrTournamentCanceled
	}
	if t.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: registration is only open while the tournament is pending", ErrInvalidStatusTransition)
	}
	cfg, err := t.ParseConfig()
	if err != nil {
		return nil, err
	}
	existing, err := s.playerRepo.ListByTournament(ctx, nil, tournamentID, nil)
	if err != nil {
		return nil, err
	}
	if len(existing) >= cfg.MaxPlayers {
		return nil, ErrTournamentFull
	}

	entry := &models.TournamentPlayer{
		TournamentID: tournamentID,
		PlayerID:     playerID,
		Status:       models.PlayerApplied,
	}
	if err := s.playerRepo.Create(ctx, nil, entry); err != nil {
		if errors.Is(err, repositories.ErrPlayerAlreadyRegistered) {
			return nil, ErrRegistrationConflict
		}
		return nil, err
	}
	return entry, nil
}

func (s *tournamentService) UpdatePlayerStatus(ctx context.Context, entryID int, status models.PlayerStatus) error {
	switch status {
	case models.PlayerApplied, models.PlayerConfirmed, models.PlayerCheckedIn:
	default:
		// eliminated and winner are set by the engine, never by hand.
		return fmt.Errorf("%w: status %q cannot be set directly", ErrValidationFailed, status)
	}
	err := s.playerRepo.UpdateStatus(ctx, nil, entryID, status)
	if errors.Is(err, repositories.ErrTournamentPlayerNotFound) {
		return ErrPlayerNotFound
	}
	return err
}

// CancelTournament flags the tournament; nothing is deleted and its results
// never feed the rating engine.
func (s *tournamentService) CancelTournament(ctx context.Context, id int) error {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return err
	}
	if t.Status == models.StatusFinished {
		return fmt.Errorf("%w: a finished tournament cannot be canceled", ErrInvalidStatusTransition)
	}
	if err := s.tournamentRepo.SetCanceled(ctx, nil, id, true); err != nil {
		return err
	}
	s.logger.Info("tournament canceled", slog.Int("tournament_id", id))
	return nil
}

// FinishTournament closes the knockout phase: placements are derived from the
// bracket, stat snapshots frozen, and exactly one rating update applied per
// participant.
func (s *tournamentService) FinishTournament(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Canceled {
		return nil, ErrTournamentCanceled
	}
	if t.Status != models.StatusKnockout {
		return nil, fmt.Errorf("%w: tournament %d is %s, expected %s", ErrInvalidStatusTransition, id, t.Status, models.StatusKnockout)
	}

	cfg, err := t.ParseConfig()
	if err != nil {
		return nil, err
	}
	final, err := finalMatch(t.Matches)
	if err != nil {
		return nil, err
	}
	if final.Status != models.MatchFinished || final.WinnerPlayerID == nil {
		return nil, fmt.Errorf("%w: the final has not finished yet", ErrInvalidStatusTransition)
	}

	results := derivePlacements(t)
	statsByEntry := freezeStats(t)

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := advanceStatus(ctx, s.tournamentRepo, tx, id, models.StatusKnockout, models.StatusFinished); err != nil {
			return err
		}
		t.Status = models.StatusFinished

		for i := range results {
			results[i].Stats = statsByEntry[results[i].EntryID]
			status := models.PlayerEliminated
			if results[i].Placement == 1 {
				status = models.PlayerWinner
			}
			if err := s.playerRepo.Finalize(ctx, tx, results[i].EntryID, results[i].Placement, status, &results[i].Stats); err != nil {
				return err
			}
		}
		if t.RatingEligible() && !cfg.Sandbox {
			return s.ratings.ApplyTournamentResults(ctx, tx, t, results)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}

	t.Status = models.StatusFinished
	s.logger.Info("tournament finished",
		slog.Int("tournament_id", id),
		slog.Int("winner_player_id", *final.WinnerPlayerID))
	return t, nil
}

func finalMatch(matches []models.Match) (*models.Match, error) {
	var final *models.Match
	maxRound := 0
	for i := range matches {
		m := &matches[i]
		if m.Round == nil {
			continue
		}
		if *m.Round > maxRound {
			maxRound = *m.Round
			final = m
		}
	}
	if final == nil {
		return nil, fmt.Errorf("%w: tournament has no knockout matches", ErrValidationFailed)
	}
	return final, nil
}

// derivePlacements ranks every participant. Knockout placements come from the
// elimination round (losers of the same round share a placement); players
// knocked out in the groups share placements by group rank below all knockout
// participants.
func derivePlacements(t *models.Tournament) []PlayerResult {
	entryByPlayer := make(map[int]*models.TournamentPlayer, len(t.Players))
	for i := range t.Players {
		entryByPlayer[t.Players[i].PlayerID] = &t.Players[i]
	}

	maxRound := 0
	for i := range t.Matches {
		if r := t.Matches[i].Round; r != nil && *r > maxRound {
			maxRound = *r
		}
	}

	// Losers by elimination round, winner of the final separately.
	placementByPlayer := make(map[int]int)
	for i := range t.Matches {
		m := &t.Matches[i]
		if m.Round == nil || m.Status != models.MatchFinished || m.WinnerPlayerID == nil {
			continue
		}
		winner := *m.WinnerPlayerID
		for _, slot := range []*int{m.Player1ID, m.Player2ID} {
			if slot == nil || *slot == winner {
				continue
			}
			// Losers of round r place directly below everyone still alive:
			// 2^(maxRound-r) players survive past round r.
			placementByPlayer[*slot] = 1<<(maxRound-*m.Round) + 1
		}
		if *m.Round == maxRound {
			placementByPlayer[winner] = 1
		}
	}

	knockoutCount := len(placementByPlayer)

	// Group-stage eliminations: same group rank shares a placement tier.
	type eliminated struct {
		playerID int
		rank     int
		seed     int
	}
	var outInGroups []eliminated
	for i := range t.Players {
		p := &t.Players[i]
		if _, ok := placementByPlayer[p.PlayerID]; ok {
			continue
		}
		rank := derefInt(p.GroupRank)
		if rank == 0 {
			rank = 1 << 30 // never grouped ranks last
		}
		outInGroups = append(outInGroups, eliminated{playerID: p.PlayerID, rank: rank, seed: p.Seed})
	}
	sort.SliceStable(outInGroups, func(i, j int) bool {
		if outInGroups[i].rank != outInGroups[j].rank {
			return outInGroups[i].rank < outInGroups[j].rank
		}
		return outInGroups[i].seed < outInGroups[j].seed
	})
	tierStart := knockoutCount + 1
	for i, e := range outInGroups {
		if i > 0 && e.rank != outInGroups[i-1].rank {
			tierStart = knockoutCount + 1 + i
		}
		placementByPlayer[e.playerID] = tierStart
	}

	results := make([]PlayerResult, 0, len(t.Players))
	for i := range t.Players {
		p := &t.Players[i]
		placement, ok := placementByPlayer[p.PlayerID]
		if !ok {
			continue
		}
		results = append(results, PlayerResult{
			PlayerID:  p.PlayerID,
			EntryID:   p.ID,
			Placement: placement,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Placement < results[j].Placement })
	return results
}

// freezeStats aggregates each player's finished matches into the snapshot
// stored on the roster entry.
func freezeStats(t *models.Tournament) map[int]models.PlayerStats {
	type totals struct {
		models.PlayerStats
		score int
		darts int
	}
	byPlayer := make(map[int]*totals, len(t.Players))
	for i := range t.Players {
		byPlayer[t.Players[i].PlayerID] = &totals{}
	}

	for i := range t.Matches {
		m := &t.Matches[i]
		if m.Status != models.MatchFinished {
			continue
		}
		for _, side := range []models.Side{models.SideOne, models.SideTwo} {
			playerID := m.PlayerIDFor(side)
			if playerID == nil {
				continue
			}
			agg, ok := byPlayer[*playerID]
			if !ok {
				continue
			}
			stats := m.SideStatsFor(side)
			opponent := m.SideStatsFor(side.Other())
			agg.LegsWon += stats.LegsWon
			agg.LegsLost += opponent.LegsWon
			if m.WinnerPlayerID != nil && *m.WinnerPlayerID == *playerID {
				agg.MatchesWon++
			} else {
				agg.MatchesLost++
			}
			agg.score += stats.TotalScore
			agg.darts += stats.DartsThrown
			agg.Maximums += stats.Maximums
			if stats.HighestCheckout > agg.HighestCheckout {
				agg.HighestCheckout = stats.HighestCheckout
			}
		}
	}

	out := make(map[int]models.PlayerStats, len(byPlayer))
	for i := range t.Players {
		p := &t.Players[i]
		agg := byPlayer[p.PlayerID]
		if agg.darts > 0 {
			agg.Average = float64(agg.score) / float64(agg.darts) * 3
		}
		out[p.ID] = agg.PlayerStats
	}
	return out
}
