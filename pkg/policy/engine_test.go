package policy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fplayout/fplayout/pkg/location"
)

func TestNewEngine(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	policies := eng.ListPolicies()
	if len(policies) == 0 {
		t.Fatal("no built-in policies loaded")
	}

	expected := []string{
		"producer-naming",
		"production-channel",
		"uninstall-restrictions",
		"transitive-override",
	}
	for _, name := range expected {
		found := false
		for _, p := range policies {
			if p.Name == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected built-in policy not found: %s", name)
		}
	}
}

func TestEvaluate_ProducerNaming(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	tests := []struct {
		name        string
		producerStr string
		wantAllowed bool
	}{
		{"valid lowercase", "acme.web-server", true},
		{"uppercase rejected", "Acme.WebServer", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.Evaluate(context.Background(), "install", location.ProducerSpec{Producer: tt.producerStr}, nil)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if result.Allowed != tt.wantAllowed {
				t.Errorf("producer %q: allowed=%v, want %v (violations=%v)", tt.producerStr, result.Allowed, tt.wantAllowed, result.Violations)
			}
		})
	}
}

func TestEvaluate_UninstallRestrictions(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	result, err := eng.Evaluate(context.Background(), "uninstall", location.ProducerSpec{Producer: "core-platform"}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected uninstall of core-platform to be denied")
	}

	result, err = eng.Evaluate(context.Background(), "uninstall", location.ProducerSpec{Producer: "some-addon"}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.Allowed {
		t.Errorf("expected uninstall of a non-critical producer to be allowed, violations=%v", result.Violations)
	}
}

func TestGateOperation_DeniesAsError(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	err = eng.GateOperation(context.Background(), "uninstall", location.ProducerSpec{Producer: "security-baseline"}, nil)
	if err == nil {
		t.Fatal("expected GateOperation to deny uninstall of security-baseline")
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	if err := eng.DisablePolicy("uninstall-restrictions"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	result, err := eng.Evaluate(context.Background(), "uninstall", location.ProducerSpec{Producer: "core-platform"}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.Allowed {
		t.Errorf("expected disabled policy not to deny, violations=%v", result.Violations)
	}

	if err := eng.EnablePolicy("uninstall-restrictions"); err != nil {
		t.Fatalf("enable: %v", err)
	}
	result, err = eng.Evaluate(context.Background(), "uninstall", location.ProducerSpec{Producer: "core-platform"}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Allowed {
		t.Error("expected re-enabled policy to deny again")
	}
}

func TestReloadPolicies(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	if err := eng.DisablePolicy("producer-naming"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := eng.ReloadPolicies(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	p, err := eng.GetPolicy("producer-naming")
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	if !p.Enabled {
		t.Error("expected reload to restore built-in policies to their default enabled state")
	}
}
