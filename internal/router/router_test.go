package router

import (
	"testing"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name   string
		family *types.Family
		want   Destination
	}{
		{"nil family", nil, Local},
		{"offline flag set", &types.Family{ID: "uuid-1", IsOffline: true}, Local},
		{"offline shaped id with stale flag", &types.Family{ID: "family-1700000000000-abc123xyz", IsOffline: false}, Local},
		{"online family", &types.Family{ID: "b6f7d9f0-1111-4a5d-9a1e-000000000001", IsOffline: false}, Remote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.family); got != tt.want {
				t.Errorf("Route() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRouteID(t *testing.T) {
	if RouteID("offline-1700000000000-abc123xyz") != Local {
		t.Error("offline shaped id should route local")
	}
	if RouteID("b6f7d9f0-1111-4a5d-9a1e-000000000001") != Remote {
		t.Error("remote id should route remote")
	}
}
