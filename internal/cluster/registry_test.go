package cluster

import "testing"

func TestRegistryAcquireIsIdempotentPerWorker(t *testing.T) {
	source := buildSourceCluster(t)
	reg := NewRegistry(nil)

	d1, err := reg.Acquire("worker-a", source)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	d2, err := reg.Acquire("worker-a", source)
	if err != nil {
		t.Fatalf("Acquire (second call): %v", err)
	}
	if d1 != d2 {
		t.Errorf("Acquire should return the same duplicate for the same worker id")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestRegistryReleaseFreesAndForgets(t *testing.T) {
	source := buildSourceCluster(t)
	reg := NewRegistry(nil)

	dup, err := reg.Acquire("worker-a", source)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	reg.Release("worker-a")

	if _, ok := reg.Get("worker-a"); ok {
		t.Errorf("Get should fail after Release")
	}
	if dup.DuplicatedFrom != nil {
		t.Errorf("Release should sever the duplicate's back-link via Free")
	}
	if len(source.Duplicates) != 0 {
		t.Errorf("source.Duplicates should be empty after Release")
	}
}

func TestRegistryDistinctWorkersGetDistinctDuplicates(t *testing.T) {
	source := buildSourceCluster(t)
	reg := NewRegistry(nil)

	d1, _ := reg.Acquire("worker-a", source)
	d2, _ := reg.Acquire("worker-b", source)
	if d1 == d2 {
		t.Errorf("different worker ids should get different duplicates")
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}
}
