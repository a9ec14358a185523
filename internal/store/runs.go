package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RunCounts holds the per-stage totals recorded when a pipeline run
// completes.
type RunCounts struct {
	Discovered         int
	Fresh              int
	Scraped            int
	Failed             int
	Upserted           int
	MatchedSubscribers int
	EmailsSent         int
	GroupsCreated      int
}

// CreateRun inserts a new run row in the running state and returns its id.
func (s *Store) CreateRun(ctx context.Context) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `INSERT INTO runs (id) VALUES ($1)`, id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun marks a run finished with the given status and stage counts.
func (s *Store) CompleteRun(ctx context.Context, id uuid.UUID, status string, counts RunCounts) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE runs SET
			completed_at = now(), status = $2,
			discovered = $3, fresh = $4, scraped = $5, failed = $6,
			upserted = $7, matched_subscribers = $8, emails_sent = $9, groups_created = $10
		 WHERE id = $1`,
		id, status,
		counts.Discovered, counts.Fresh, counts.Scraped, counts.Failed,
		counts.Upserted, counts.MatchedSubscribers, counts.EmailsSent, counts.GroupsCreated)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}
