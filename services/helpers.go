package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oacdarts/tournament-engine/models"
	"github.com/oacdarts/tournament-engine/repositories"
)

// withTx runs fn inside a transaction, rolling back on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// advanceStatus checks the transition against the state machine before
// handing it to the status-predicated repository update.
func advanceStatus(ctx context.Context, repo repositories.TournamentRepository, exec repositories.SQLExecutor, id int, from, to models.TournamentStatus) error {
	if from == to || !isValidStatusTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
	}
	return repo.UpdateStatus(ctx, exec, id, from, to)
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowed := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusPending:    {models.StatusGroupStage},
		models.StatusGroupStage: {models.StatusKnockout},
		models.StatusKnockout:   {models.StatusFinished},
		models.StatusFinished:   {},
	}
	for _, s := range allowed[current] {
		if next == s {
			return true
		}
	}
	return false
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
