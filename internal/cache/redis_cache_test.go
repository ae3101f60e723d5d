package cache_test

import (
	"strings"
	"testing"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/cache"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/features"
)

func vector() features.FeatureVector {
	return features.FeatureVector{
		XStd: 20, YStd: 25, S: 5, A: 1, Dis: 0.5, DirStd: 100,
		XStdEnd: 24.9, YStdEnd: 24.1, PlayerHeight: 72, PlayerWeight: 220,
		PlayerAge: 24.5, Down: 2, Distance: 7, DefendersInTheBox: 6,
	}
}

func TestKey(t *testing.T) {
	fv := vector()

	key := cache.Key("v1", fv)
	if !strings.HasPrefix(key, "prediction:v1:") {
		t.Errorf("key %q lacks version prefix", key)
	}
	if len(strings.TrimPrefix(key, "prediction:v1:")) != 64 {
		t.Errorf("key %q does not end in a sha256 hex digest", key)
	}

	if cache.Key("v1", fv) != key {
		t.Error("key is not stable")
	}
	if cache.Key("v2", fv) == key {
		t.Error("key ignores model version")
	}

	other := fv
	other.S = 5.01
	if cache.Key("v1", other) == key {
		t.Error("key ignores feature values")
	}
}
