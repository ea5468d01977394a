package ratelimit

import (
	"sync"
	"testing"
)

func TestDefault_LazySingleton(t *testing.T) {
	t.Cleanup(DestroySingleton)
	DestroySingleton()

	var wg sync.WaitGroup
	engines := make([]*Engine, 16)
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engines[i] = Default()
		}(i)
	}
	wg.Wait()

	for i, e := range engines {
		if e != engines[0] {
			t.Fatalf("Default() call %d returned a different engine", i)
		}
	}
	if !engines[0].Running() {
		t.Error("default engine should be running")
	}
}

func TestDefault_CreateAndDestroy(t *testing.T) {
	t.Cleanup(DestroySingleton)

	b, err := Create(10, Seconds)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	first := Default()
	if !b.Valid() {
		t.Fatal("bucket should be valid")
	}

	DestroySingleton()
	DestroySingleton() // no engine, no-op

	if b.Valid() {
		t.Error("bucket should be invalid after DestroySingleton")
	}
	if first.Running() {
		t.Error("destroyed engine should not be running")
	}

	second := Default()
	if second == first {
		t.Error("Default() after DestroySingleton should build a new engine")
	}
	if _, err := Create(10, Seconds); err != nil {
		t.Errorf("Create() on the new engine error = %v", err)
	}
}
