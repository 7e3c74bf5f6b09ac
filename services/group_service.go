package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oacdarts/tournament-engine/brackets"
	"github.com/oacdarts/tournament-engine/models"
	"github.com/oacdarts/tournament-engine/repositories"
	"github.com/oacdarts/tournament-engine/standings"
)

// GroupStanding pairs a group with its current ranking.
type GroupStanding struct {
	Group models.Group    `json:"group"`
	Rows  []standings.Row `json:"rows"`
}

type GroupService interface {
	// GenerateGroupStage assigns checked-in players to groups, creates the
	// round-robin schedule and moves the tournament into the group phase.
	GenerateGroupStage(ctx context.Context, tournamentID int) ([]*models.Group, error)
	GroupStandings(ctx context.Context, tournamentID int) ([]GroupStanding, error)
}

type groupService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	playerRepo     repositories.TournamentPlayerRepository
	groupRepo      repositories.GroupRepository
	matchRepo      repositories.MatchRepository
	shuffler       brackets.Shuffler
	logger         *slog.Logger
}

func NewGroupService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	playerRepo repositories.TournamentPlayerRepository,
	groupRepo repositories.GroupRepository,
	matchRepo repositories.MatchRepository,
	shuffler brackets.Shuffler,
	logger *slog.Logger,
) GroupService {
	return &groupService{
		db:             db,
		tournamentRepo: tournamentRepo,
		playerRepo:     playerRepo,
		groupRepo:      groupRepo,
		matchRepo:      matchRepo,
		shuffler:       shuffler,
		logger:         logger,
	}
}

func (s *groupService) GenerateGroupStage(ctx context.Context, tournamentID int) ([]*models.Group, error) {
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
		return nil, fmt.Errorf("%w: tournament %d is %s, expected %s", ErrInvalidStatusTransition, tournamentID, t.Status, models.StatusPending)
	}
	cfg, err := t.ParseConfig()
	if err != nil {
		return nil, err
	}
	if cfg.BoardCount < cfg.GroupCount {
		return nil, fmt.Errorf("%w: %d boards cannot host %d groups one per board",
			ErrValidationFailed, cfg.BoardCount, cfg.GroupCount)
	}

	checkedIn := models.PlayerCheckedIn
	players, err := s.playerRepo.ListByTournament(ctx, nil, tournamentID, &checkedIn)
	if err != nil {
		return nil, err
	}
	if len(players) < cfg.MinPlayers {
		return nil, fmt.Errorf("%w: %d checked in, minimum is %d", ErrNotEnoughPlayers, len(players), cfg.MinPlayers)
	}

	// Seeds are registration order; the group draw itself is shuffled.
	playerIDs := make([]int, len(players))
	entryByPlayer := make(map[int]*models.TournamentPlayer, len(players))
	for i, p := range players {
		playerIDs[i] = p.PlayerID
		entryByPlayer[p.PlayerID] = p
	}

	plan, err := brackets.AssignGroups(playerIDs, cfg.GroupCount, s.shuffler)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	groups := make([]*models.Group, 0, len(plan.Groups))
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		for groupIdx, memberIDs := range plan.Groups {
			// One board per group, guaranteed by the count check above.
			number := groupIdx + 1
			boardNumber := number
			group := &models.Group{
				TournamentID: tournamentID,
				Number:       number,
				BoardNumber:  boardNumber,
			}
			if err := s.groupRepo.Create(ctx, tx, group); err != nil {
				return err
			}
			group.PlayerIDs = memberIDs

			for _, playerID := range memberIDs {
				entry := entryByPlayer[playerID]
				if err := s.playerRepo.AssignGroup(ctx, tx, entry.ID, group.ID); err != nil {
					return err
				}
			}

			for _, pair := range brackets.RoundRobinPairs(memberIDs) {
				p1, p2 := pair[0], pair[1]
				match := &models.Match{
					TournamentID: tournamentID,
					GroupID:      &group.ID,
					BoardNumber:  &boardNumber,
					Player1ID:    &p1,
					Player2ID:    &p2,
					LegsToWin:    cfg.GroupLegsToWin,
					Status:       models.MatchPending,
				}
				if err := s.matchRepo.Create(ctx, tx, match); err != nil {
					return err
				}
				group.Matches = append(group.Matches, *match)
			}
			groups = append(groups, group)
		}
		return advanceStatus(ctx, s.tournamentRepo, tx, tournamentID, models.StatusPending, models.StatusGroupStage)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}

	s.logger.Info("group stage generated",
		slog.Int("tournament_id", tournamentID),
		slog.Int("groups", len(groups)),
		slog.Int("players", len(players)))
	return groups, nil
}

// GroupStandings recomputes the ranking of every group from its finished
// matches. It is a pure read, safe to call at any time.
func (s *groupService) GroupStandings(ctx context.Context, tournamentID int) ([]GroupStanding, error) {
	groups, err := s.groupRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	players, err := s.playerRepo.ListByTournament(ctx, nil, tournamentID, nil)
	if err != nil {
		return nil, err
	}

	out := make([]GroupStanding, 0, len(groups))
	for _, group := range groups {
		// Registration order within the group is the stable tie-break.
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
		group.PlayerIDs = memberIDs
		group.Matches = groupMatches
		out = append(out, GroupStanding{
			Group: *group,
			Rows:  standings.Calculate(memberIDs, groupMatches),
		})
	}
	return out, nil
}
