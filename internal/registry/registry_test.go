package registry_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/registry"
)

type constModel float64

func (c constModel) Predict(x []float64) float64 { return float64(c) }

func TestRegistry_EmptyIsUnavailable(t *testing.T) {
	r := registry.NewRegistry()

	if _, err := r.Current(); !errors.Is(err, registry.ErrModelUnavailable) {
		t.Errorf("Current() error = %v, want ErrModelUnavailable", err)
	}
	if r.Loaded() {
		t.Error("empty registry reports loaded")
	}
}

func TestRegistry_IncompleteSetIsUnavailable(t *testing.T) {
	r := registry.NewRegistry()
	r.Swap(&registry.ModelSet{Version: "v1", Boosted: constModel(1)})

	if _, err := r.Current(); !errors.Is(err, registry.ErrModelUnavailable) {
		t.Errorf("Current() error = %v, want ErrModelUnavailable", err)
	}
}

func TestRegistry_Swap(t *testing.T) {
	r := registry.NewRegistry()

	first := &registry.ModelSet{Version: "v1", Boosted: constModel(1), Stacking: constModel(2)}
	if prev := r.Swap(first); prev != nil {
		t.Errorf("first swap returned %v, want nil", prev)
	}

	second := &registry.ModelSet{Version: "v2", Boosted: constModel(3), Stacking: constModel(4)}
	if prev := r.Swap(second); prev != first {
		t.Errorf("second swap returned %v, want first set", prev)
	}

	got, err := r.Current()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Version != "v2" {
		t.Errorf("version = %s, want v2", got.Version)
	}
}

func TestRegistry_ConcurrentReadersSeeWholeSets(t *testing.T) {
	r := registry.NewRegistry()
	r.Swap(&registry.ModelSet{Version: "v0", Boosted: constModel(0), Stacking: constModel(0)})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				set, err := r.Current()
				if err != nil {
					t.Error(err)
					return
				}
				// Both models of a set were built with the same constant.
				if set.Boosted.Predict(nil) != set.Stacking.Predict(nil) {
					t.Error("observed a mixed model set")
					return
				}
			}
		}()
	}

	for i := 1; i <= 100; i++ {
		r.Swap(&registry.ModelSet{Boosted: constModel(i), Stacking: constModel(i)})
	}
	wg.Wait()
}

func TestImportanceMap(t *testing.T) {
	m := registry.ImportanceMap([]float64{0.5, 0.25})
	if m["X_std"] != 0.5 || m["Y_std"] != 0.25 {
		t.Errorf("ImportanceMap = %v", m)
	}
}
