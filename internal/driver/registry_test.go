package driver

import (
	"testing"

	"go.uber.org/zap"

	"myo-recorder/pkg/driver"
)

func TestRegistryCreatesRegisteredKinds(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	RegisterDefaultDrivers(registry, zap.NewNop())

	if got := registry.ListKinds(); len(got) != 2 || got[0] != KindMyo || got[1] != KindSimulated {
		t.Errorf("ListKinds() = %v", got)
	}

	tests := []struct {
		kind    string
		wantErr bool
	}{
		{KindMyo, false},
		{KindSimulated, false},
		{"bluetooth-classic", true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			session, err := registry.CreateSession(&driver.SessionConfig{Kind: tt.kind, Port: "/dev/ttyACM0"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateSession() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && session == nil {
				t.Error("CreateSession() returned a nil session")
			}
			if registry.IsSupported(tt.kind) == tt.wantErr {
				t.Errorf("IsSupported(%q) = %v", tt.kind, !tt.wantErr)
			}
		})
	}
}
