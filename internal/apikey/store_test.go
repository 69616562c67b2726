package apikey

import (
	"testing"

	"github.com/avatarplatform/mediator/internal/models"
)

func modelsApiKeyWith(resources []string) models.ApiKey {
	return models.ApiKey{PermittedResources: resources}
}

func TestHashSecret_Deterministic(t *testing.T) {
	a := HashSecret("s3cret")
	b := HashSecret("s3cret")
	if a != b {
		t.Errorf("HashSecret not deterministic: %q vs %q", a, b)
	}
	if a == HashSecret("other") {
		t.Errorf("HashSecret collided for distinct inputs")
	}
}

func TestSplitCSV(t *testing.T) {
	cases := map[string][]string{
		"":               nil,
		"a":              {"a"},
		"a,b,c":          {"a", "b", "c"},
		"a,,b":           {"a", "b"},
	}
	for in, want := range cases {
		got := splitCSV(in)
		if len(got) != len(want) {
			t.Errorf("splitCSV(%q) = %v, want %v", in, got, want)
			continue
		}
		for i := range got {
			if got[i] != want[i] {
				t.Errorf("splitCSV(%q)[%d] = %q, want %q", in, i, got[i], want[i])
			}
		}
	}
}

func TestPermits_EmptyListAllowsAll(t *testing.T) {
	if !Permits(modelsApiKeyWith(nil), "anything") {
		t.Error("expected empty PermittedResources to permit everything")
	}
}

func TestPermits_NonEmptyListRestricts(t *testing.T) {
	k := modelsApiKeyWith([]string{"audio-generation"})
	if !Permits(k, "audio-generation") {
		t.Error("expected permitted resource to be allowed")
	}
	if Permits(k, "video-generation") {
		t.Error("expected non-permitted resource to be denied")
	}
}
