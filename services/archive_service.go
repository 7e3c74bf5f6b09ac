package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/oacdarts/tournament-engine/models"
	"github.com/oacdarts/tournament-engine/repositories"
	"github.com/oacdarts/tournament-engine/storage"
)

// archiveSweepBatch caps how many tournaments one sweep pass snapshots.
const archiveSweepBatch = 25

// ArchiveService snapshots finished tournaments to object storage so the
// operational tables stay lean while full results remain downloadable.
type ArchiveService interface {
	ArchiveTournament(ctx context.Context, tournamentID int) (*storage.UploadResult, error)
	// SweepFinished archives every finished, not-yet-archived tournament,
	// up to the batch limit. It is the scheduler entrypoint.
	SweepFinished(ctx context.Context) (int, error)
}

type archiveService struct {
	tournamentRepo repositories.TournamentRepository
	tournaments    TournamentService
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewArchiveService(
	tournamentRepo repositories.TournamentRepository,
	tournaments TournamentService,
	uploader storage.FileUploader,
	logger *slog.Logger,
) ArchiveService {
	return &archiveService{
		tournamentRepo: tournamentRepo,
		tournaments:    tournaments,
		uploader:       uploader,
		logger:         logger,
	}
}

func (s *archiveService) ArchiveTournament(ctx context.Context, tournamentID int) (*storage.UploadResult, error) {
	t, err := s.tournaments.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusFinished {
		return nil, fmt.Errorf("%w: only finished tournaments can be archived", ErrInvalidStatusTransition)
	}
	if t.ArchivedAt != nil {
		return nil, fmt.Errorf("%w: tournament %d is already archived", ErrValidationFailed, tournamentID)
	}

	snapshot, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot of tournament %d: %w", tournamentID, err)
	}

	key := fmt.Sprintf("archives/%d/tournament-%d-%s.json", t.StartDate.Year(), t.ID, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(snapshot))
	if err != nil {
		return nil, err
	}

	if err := s.tournamentRepo.MarkArchived(ctx, nil, tournamentID); err != nil {
		// The snapshot exists but the flag write failed; remove the orphan
		// so the next sweep produces a consistent pair.
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.Error("failed to delete orphaned archive object",
				slog.String("key", key), slog.String("error", delErr.Error()))
		}
		return nil, err
	}

	s.logger.Info("tournament archived",
		slog.Int("tournament_id", tournamentID),
		slog.String("key", result.Key),
		slog.String("location", result.Location))
	return result, nil
}

func (s *archiveService) SweepFinished(ctx context.Context) (int, error) {
	pending, err := s.tournamentRepo.ListFinishedUnarchived(ctx, archiveSweepBatch)
	if err != nil {
		return 0, err
	}
	archived := 0
	for _, t := range pending {
		if _, err := s.ArchiveTournament(ctx, t.ID); err != nil {
			if errors.Is(err, ErrValidationFailed) {
				continue // raced with another sweep
			}
			return archived, err
		}
		archived++
	}
	if archived > 0 {
		s.logger.Info("archive sweep complete", slog.Int("archived", archived))
	}
	return archived, nil
}
