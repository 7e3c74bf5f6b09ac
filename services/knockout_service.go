package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/oacdarts/tournament-engine/brackets"
	"github.com/oacdarts/tournament-engine/models"
	"github.com/oacdarts/tournament-engine/repositories"
	"github.com/oacdarts/tournament-engine/standings"
)

type KnockoutService interface {
	// GenerateKnockout closes the group stage, ranks the groups, seeds the
	// winners and persists the single-elimination bracket.
	GenerateKnockout(ctx context.Context, tournamentID int) ([]models.KnockoutRound, error)
	// PropagateWinner advances the winner of a finished knockout match into
	// its reserved slot of the next round and eliminates the loser.
	PropagateWinner(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error
	Bracket(ctx context.Context, tournamentID int) ([]models.KnockoutRound, error)
}

type knockoutService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	playerRepo     repositories.TournamentPlayerRepository
	groupRepo      repositories.GroupRepository
	matchRepo      repositories.MatchRepository
	shuffler       brackets.Shuffler
	logger         *slog.Logger
}

func NewKnockoutService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	playerRepo repositories.TournamentPlayerRepository,
	groupRepo repositories.GroupRepository,
	matchRepo repositories.MatchRepository,
	shuffler brackets.Shuffler,
	logger *slog.Logger,
) KnockoutService {
	return &knockoutService{
		db:             db,
		tournamentRepo: tournamentRepo,
		playerRepo:     playerRepo,
		groupRepo:      groupRepo,
		matchRepo:      matchRepo,
		shuffler:       shuffler,
		logger:         logger,
	}
}

func (s *knockoutService) GenerateKnockout(ctx context.Context, tournamentID int) ([]models.KnockoutRound, error) {
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
	if t.Status != models.StatusGroupStage {
		return nil, fmt.Errorf("%w: tournament %d is %s, expected %s", ErrInvalidStatusTransition, tournamentID, t.Status, models.StatusGroupStage)
	}
	cfg, err := t.ParseConfig()
	if err != nil {
		return nil, err
	}

	unfinished, err := s.matchRepo.CountUnfinishedGroupMatches(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if unfinished > 0 {
		return nil, fmt.Errorf("%w: %d matches remain", ErrGroupStageUnfinished, unfinished)
	}

	groups, err := s.groupRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	players, err := s.playerRepo.ListByTournament(ctx, nil, tournamentID, nil)
	if err != nil {
		return nil, err
	}

	// Rank every group; group winners form the seeded band in group order,
	// ranks 2..qualifiers the pool, the rest are out.
	type ranked struct {
		entry *models.TournamentPlayer
		rank  int
	}
	var seeded, pool []int
	rankedEntries := make([]ranked, 0, len(players))
	eliminatedEntries := make([]*models.TournamentPlayer, 0)

	entryByPlayer := make(map[int]*models.TournamentPlayer, len(players))
	for _, p := range players {
		entryByPlayer[p.PlayerID] = p
	}

	for _, group := range groups {
		var memberIDs []int
		for _, p := range players {
			if p.GroupID != nil && *p.GroupID == group.ID {
				memberIDs = append(memberIDs, p.PlayerID)
			}
		}
		matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID, repositories.MatchFilter{GroupID: &group.ID})
		if err != nil {
			return nil, err
		}
		groupMatches := make([]models.Match, len(matches))
		for i, m := range matches {
			groupMatches[i] = *m
		}
		rows := standings.Calculate(memberIDs, groupMatches)
		for _, row := range rows {
			entry := entryByPlayer[row.PlayerID]
			rankedEntries = append(rankedEntries, ranked{entry: entry, rank: row.Rank})
			switch {
			case row.Rank == 1:
				seeded = append(seeded, row.PlayerID)
			case row.Rank <= cfg.QualifiersPerGroup:
				pool = append(pool, row.PlayerID)
			default:
				eliminatedEntries = append(eliminatedEntries, entry)
			}
		}
	}

	plan, err := brackets.GenerateKnockout(brackets.KnockoutParams{
		Seeded:   seeded,
		Pool:     pool,
		Boards:   cfg.BoardCount,
		Shuffler: s.shuffler,
	})
	if err != nil {
		if errors.Is(err, brackets.ErrBracketValidation) {
			return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		return nil, err
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, r := range rankedEntries {
			if err := s.playerRepo.SetGroupRank(ctx, tx, r.entry.ID, r.rank); err != nil {
				return err
			}
		}
		for _, entry := range eliminatedEntries {
			if err := s.playerRepo.UpdateStatus(ctx, tx, entry.ID, models.PlayerEliminated); err != nil {
				return err
			}
		}

		// First pass: persist the playable matches, remembering the row id
		// behind every bracket uid. Byes never become rows.
		idByUID := make(map[string]int, len(plan.Matches))
		for _, bm := range plan.Matches {
			if bm.IsBye {
				continue
			}
			round := bm.Round
			order := bm.OrderInRound
			uid := bm.UID
			match := &models.Match{
				TournamentID: tournamentID,
				Round:        &round,
				OrderInRound: &order,
				BracketUID:   &uid,
				BoardNumber:  bm.BoardNumber,
				Player1ID:    bm.Slot1.PlayerID,
				Player2ID:    bm.Slot2.PlayerID,
				LegsToWin:    cfg.KnockoutLegsToWin,
				Status:       models.MatchPending,
			}
			if err := s.matchRepo.Create(ctx, tx, match); err != nil {
				return err
			}
			idByUID[uid] = match.ID
		}

		// Second pass: wire the winner links back onto the feeding matches.
		for _, bm := range plan.Matches {
			if bm.IsBye {
				continue
			}
			targetID := idByUID[bm.UID]
			for slotNumber, slot := range []brackets.Slot{bm.Slot1, bm.Slot2} {
				if slot.SourceUID == nil {
					continue
				}
				sourceID, ok := idByUID[*slot.SourceUID]
				if !ok {
					return fmt.Errorf("bracket link %s -> %s refers to a missing match", *slot.SourceUID, bm.UID)
				}
				if err := s.matchRepo.SetBracketLink(ctx, tx, sourceID, targetID, slotNumber+1); err != nil {
					return err
				}
			}
		}

		return advanceStatus(ctx, s.tournamentRepo, tx, tournamentID, models.StatusGroupStage, models.StatusKnockout)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}

	s.logger.Info("knockout bracket generated",
		slog.Int("tournament_id", tournamentID),
		slog.Int("rounds", plan.Rounds),
		slog.Int("seeded", len(seeded)),
		slog.Int("pool", len(pool)))

	return s.Bracket(ctx, tournamentID)
}

func (s *knockoutService) PropagateWinner(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	if match.Round == nil || match.Status != models.MatchFinished || match.WinnerPlayerID == nil {
		return nil
	}
	winner := *match.WinnerPlayerID

	// Eliminate the loser.
	for _, slot := range []*int{match.Player1ID, match.Player2ID} {
		if slot == nil || *slot == winner {
			continue
		}
		players, err := s.playerRepo.ListByTournament(ctx, exec, match.TournamentID, nil)
		if err != nil {
			return err
		}
		for _, p := range players {
			if p.PlayerID == *slot {
				if err := s.playerRepo.UpdateStatus(ctx, exec, p.ID, models.PlayerEliminated); err != nil {
					return err
				}
				break
			}
		}
	}

	if match.NextMatchID == nil || match.WinnerToSlot == nil {
		return nil // the final
	}
	return s.matchRepo.SetPlayerSlot(ctx, exec, *match.NextMatchID, models.Side(*match.WinnerToSlot), winner)
}

// Bracket assembles the persisted knockout matches into per-round views.
func (s *knockoutService) Bracket(ctx context.Context, tournamentID int) ([]models.KnockoutRound, error) {
	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID, repositories.MatchFilter{KnockoutOnly: true})
	if err != nil {
		return nil, err
	}
	byRound := make(map[int][]models.Match)
	for _, m := range matches {
		byRound[*m.Round] = append(byRound[*m.Round], *m)
	}
	rounds := make([]models.KnockoutRound, 0, len(byRound))
	for round, ms := range byRound {
		sort.SliceStable(ms, func(i, j int) bool { return derefInt(ms[i].OrderInRound) < derefInt(ms[j].OrderInRound) })
		rounds = append(rounds, models.KnockoutRound{Round: round, Matches: ms})
	}
	sort.SliceStable(rounds, func(i, j int) bool { return rounds[i].Round < rounds[j].Round })
	return rounds, nil
}
