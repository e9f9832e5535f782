package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadFallsBackOnBadNumericValues(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")
	t.Setenv("GST_RATE", "18")
	t.Setenv("DEFAULT_MONTHLY_TARGET_CENTS", "oops")

	cfg := Load()
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected TTL fallback 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.GSTRate != 0.18 {
		t.Fatalf("expected GST rate fallback 0.18, got %v", cfg.GSTRate)
	}
	if cfg.DefaultMonthlyTargetCents != 5500000000 {
		t.Fatalf("expected target fallback, got %d", cfg.DefaultMonthlyTargetCents)
	}
}

func TestAddressUsesPort(t *testing.T) {
	t.Setenv("PORT", "9191")

	cfg := Load()
	if cfg.Address() != ":9191" {
		t.Fatalf("expected :9191, got %q", cfg.Address())
	}
}
