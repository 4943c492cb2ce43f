package conv

import (
	"slices"
	"testing"
)

func TestConfigGetters(t *testing.T) {
	cfg := map[string]any{
		"n":       3,
		"f":       0.25,
		"fi":      2,
		"flag":    true,
		"name":    "cosine",
		"ids":     []any{"a", 7.0, "b"},
		"csv":     "x, y,,z",
		"filters": []any{map[string]any{"type": "exclude"}, "skip-me"},
	}

	if got := ConfigGetInt(cfg, "n", 0); got != 3 {
		t.Errorf("ConfigGetInt = %d, want 3", got)
	}
	if got := ConfigGetInt(cfg, "missing", 9); got != 9 {
		t.Errorf("ConfigGetInt default = %d, want 9", got)
	}
	if got := ConfigGetFloat64(cfg, "f", 0); got != 0.25 {
		t.Errorf("ConfigGetFloat64 = %v", got)
	}
	if got := ConfigGetFloat64(cfg, "fi", 0); got != 2 {
		t.Errorf("ConfigGetFloat64(int) = %v", got)
	}
	if got := ConfigGetFloat64(cfg, "flag", 1.5); got != 1.5 {
		t.Errorf("ConfigGetFloat64(bool) = %v, want default", got)
	}
	if got := ConfigGet(cfg, "name", ""); got != "cosine" {
		t.Errorf("ConfigGet[string] = %q", got)
	}
	if got := ConfigGet(cfg, "n", "x"); got != "x" {
		t.Errorf("ConfigGet type mismatch = %q, want default", got)
	}
	if got := SliceAnyToString(cfg["ids"]); !slices.Equal(got, []string{"a", "7", "b"}) {
		t.Errorf("SliceAnyToString([]any) = %v", got)
	}
	if got := SliceAnyToString(cfg["csv"]); !slices.Equal(got, []string{"x", "y", "z"}) {
		t.Errorf("SliceAnyToString(csv) = %v", got)
	}
	if got := ConfigGetMaps(cfg, "filters"); len(got) != 1 || got[0]["type"] != "exclude" {
		t.Errorf("ConfigGetMaps = %v", got)
	}
}
