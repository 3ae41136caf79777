package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"proofbuild/internal/logging"
	"proofbuild/internal/objectstore"
	"proofbuild/internal/project"
	"proofbuild/internal/services"
)

// Claim is an exclusive, expiring right to run the executor for one project.
type Claim struct {
	ProjectID  string    `json:"projectId"`
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Expired reports whether the claim is no longer valid at now.
func (c Claim) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// AcquireClaim creates claims/<id>.json with a conditional write. An expired
// claim is removed and the create retried once. acquired is false when a live
// claim held by someone else exists.
func (a *Accessor) AcquireClaim(ctx context.Context, id, owner string, ttl time.Duration) (Claim, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		now := a.Now()
		claim := Claim{ProjectID: id, Owner: owner, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
		data, err := json.Marshal(claim)
		if err != nil {
			return Claim{}, false, fmt.Errorf("encode claim: %w", err)
		}
		err = a.store.PutIfAbsent(ctx, project.ClaimKey(id), data, jsonContentType)
		if err == nil {
			return claim, true, nil
		}
		if !errors.Is(err, objectstore.ErrPreconditionFailed) {
			return Claim{}, false, services.Wrap(services.ErrTransient, "", "acquire claim", id, err)
		}

		existing, found, err := a.loadClaim(ctx, id)
		if err != nil {
			return Claim{}, false, err
		}
		if found && !existing.Expired(now) {
			if existing.Owner == owner {
				return existing, true, nil
			}
			return existing, false, nil
		}
		if found {
			a.logger.Info("reclaiming expired claim",
				logging.ProjectID(id),
				logging.String("previous_owner", existing.Owner),
				logging.String("expired_at", existing.ExpiresAt.Format(time.RFC3339)),
			)
		}
		if err := a.store.Delete(ctx, project.ClaimKey(id)); err != nil {
			return Claim{}, false, services.Wrap(services.ErrTransient, "", "delete expired claim", id, err)
		}
	}
	return Claim{}, false, nil
}

// ReleaseClaim deletes the claim if owner still holds it.
func (a *Accessor) ReleaseClaim(ctx context.Context, claim Claim) error {
	existing, found, err := a.loadClaim(ctx, claim.ProjectID)
	if err != nil || !found {
		return err
	}
	if existing.Owner != claim.Owner {
		return nil
	}
	if err := a.store.Delete(ctx, project.ClaimKey(claim.ProjectID)); err != nil {
		return services.Wrap(services.ErrTransient, "", "release claim", claim.ProjectID, err)
	}
	return nil
}

// loadClaim treats unreadable claim bodies as expired so they can be replaced.
func (a *Accessor) loadClaim(ctx context.Context, id string) (Claim, bool, error) {
	obj, err := a.store.Get(ctx, project.ClaimKey(id))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return Claim{}, false, nil
		}
		return Claim{}, false, services.Wrap(services.ErrTransient, "", "load claim", id, err)
	}
	var claim Claim
	if err := json.Unmarshal(obj.Data, &claim); err != nil {
		return Claim{ProjectID: id}, true, nil
	}
	return claim, true, nil
}
