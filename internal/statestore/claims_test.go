package statestore_test

import (
	"context"
	"testing"
	"time"

	"proofbuild/internal/objectstore"
	"proofbuild/internal/pipeline"
	"proofbuild/internal/project"
	"proofbuild/internal/statestore"
)

func TestAcquireClaimExclusive(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	accessor, _ := newAccessor(t, now)
	ctx := context.Background()

	claim, ok, err := accessor.AcquireClaim(ctx, "p1", "worker-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if !claim.ExpiresAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected expiry %v", claim.ExpiresAt)
	}

	holder, ok, err := accessor.AcquireClaim(ctx, "p1", "worker-b", time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok || holder.Owner != "worker-a" {
		t.Fatalf("expected live claim held by worker-a, got ok=%v holder=%+v", ok, holder)
	}

	if _, ok, _ := accessor.AcquireClaim(ctx, "p1", "worker-a", time.Minute); !ok {
		t.Fatal("owner should be able to re-enter its own claim")
	}

	if err := accessor.ReleaseClaim(ctx, statestore.Claim{ProjectID: "p1", Owner: "worker-b"}); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, ok, _ := accessor.AcquireClaim(ctx, "p1", "worker-b", time.Minute); ok {
		t.Fatal("non-owner release must not drop the claim")
	}

	if err := accessor.ReleaseClaim(ctx, claim); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := accessor.AcquireClaim(ctx, "p1", "worker-b", time.Minute); !ok {
		t.Fatal("claim should be free after release")
	}
}

func TestAcquireClaimReplacesExpired(t *testing.T) {
	current := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := objectstore.NewMemory()
	accessor := statestore.New(store, pipeline.DefaultTable(), statestore.WithClock(func() time.Time { return current }))
	ctx := context.Background()

	if _, ok, _ := accessor.AcquireClaim(ctx, "p1", "worker-a", time.Minute); !ok {
		t.Fatal("expected first claim")
	}
	current = current.Add(2 * time.Minute)
	claim, ok, err := accessor.AcquireClaim(ctx, "p1", "worker-b", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected expired claim to be replaced, ok=%v err=%v", ok, err)
	}
	if claim.Owner != "worker-b" {
		t.Fatalf("unexpected owner %q", claim.Owner)
	}
}

func TestAcquireClaimReplacesCorrupt(t *testing.T) {
	accessor, store := newAccessor(t, time.Now())
	ctx := context.Background()
	_ = store.Put(ctx, project.ClaimKey("p1"), []byte("garbage"), "")
	if _, ok, err := accessor.AcquireClaim(ctx, "p1", "worker-a", time.Minute); err != nil || !ok {
		t.Fatalf("expected corrupt claim to be replaced, ok=%v err=%v", ok, err)
	}
}
