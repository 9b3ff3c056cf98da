//go:build !integration

package experiment

import (
	"context"
	"math"
	"testing"
)

// scenario params
const (
	stressNumUsers = 50000
	stressTol      = 0.01 // absolute tolerance on observed proportions
)

func TestGroupDistributionConvergence(t *testing.T) {
	ratios := []float64{0.5, 0.3, 0.2}

	store := newMemStore()
	store.exps["dist"] = runningExperiment("dist", 1.0, ratios...)

	reg := NewRegistry(store, nil)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	counts := make(map[string]int)
	for u := 1; u <= stressNumUsers; u++ {
		g, ok := reg.ResolveGroup(context.Background(), uint(u), "dist")
		if !ok {
			t.Fatalf("user %d excluded despite traffic ratio 1.0", u)
		}
		counts[g.Name]++
	}

	for i, want := range ratios {
		name := "group-" + string(rune('a'+i))
		got := float64(counts[name]) / float64(stressNumUsers)
		t.Logf("group=%s want=%.3f got=%.4f n=%d", name, want, got, counts[name])
		if math.Abs(got-want) > stressTol {
			t.Errorf("group %s proportion %.4f deviates from %.3f by more than %.3f", name, got, want, stressTol)
		}
	}
}

func TestTrafficGateProportion(t *testing.T) {
	store := newMemStore()
	store.exps["gate"] = runningExperiment("gate", 0.3, 1.0)

	reg := NewRegistry(store, nil)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	in := 0
	for u := 1; u <= stressNumUsers; u++ {
		if _, ok := reg.ResolveGroup(context.Background(), uint(u), "gate"); ok {
			in++
		}
	}

	got := float64(in) / float64(stressNumUsers)
	t.Logf("traffic_ratio=0.3 observed=%.4f n=%d", got, in)
	if math.Abs(got-0.3) > stressTol {
		t.Errorf("participation %.4f deviates from 0.3 by more than %.3f", got, stressTol)
	}
}

func TestAssignmentStableAcrossSnapshotRebuilds(t *testing.T) {
	store := newMemStore()
	store.exps["stable"] = runningExperiment("stable", 1.0, 0.5, 0.3, 0.2)

	reg := NewRegistry(store, nil)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	first := make(map[uint]string)
	for u := 1; u <= 2000; u++ {
		g, ok := reg.ResolveGroup(context.Background(), uint(u), "stable")
		if !ok {
			t.Fatalf("user %d excluded", u)
		}
		first[uint(u)] = g.Name
	}

	// simulate a restart: rebuild registry from the same definitions
	reg2 := NewRegistry(store, nil)
	if err := reg2.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	for u, want := range first {
		g, ok := reg2.ResolveGroup(context.Background(), u, "stable")
		if !ok {
			t.Fatalf("user %d excluded after rebuild", u)
		}
		if g.Name != want {
			t.Fatalf("user %d moved from %s to %s across rebuild", u, want, g.Name)
		}
	}
}
