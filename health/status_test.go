package health

import (
	"testing"
	"time"
)

func TestStatus_IsHealthy(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   bool
	}{
		{
			name:   "healthy status returns true",
			status: Status{State: StateHealthy},
			want:   true,
		},
		{
			name:   "unhealthy status returns false",
			status: Status{State: StateUnhealthy},
			want:   false,
		},
		{
			name:   "degraded status returns false",
			status: Status{State: StateDegraded},
			want:   false,
		},
		{
			name:   "empty state returns false",
			status: Status{},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsHealthy(); got != tt.want {
				t.Errorf("Status.IsHealthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_IsDegraded(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   bool
	}{
		{
			name:   "degraded status returns true",
			status: Status{State: StateDegraded},
			want:   true,
		},
		{
			name:   "healthy status returns false",
			status: Status{State: StateHealthy},
			want:   false,
		},
		{
			name:   "unhealthy status returns false",
			status: Status{State: StateUnhealthy},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsDegraded(); got != tt.want {
				t.Errorf("Status.IsDegraded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_IsUnhealthy(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   bool
	}{
		{
			name:   "unhealthy status returns true",
			status: Status{State: StateUnhealthy},
			want:   true,
		},
		{
			name:   "healthy status returns false",
			status: Status{State: StateHealthy},
			want:   false,
		},
		{
			name:   "degraded status returns false",
			status: Status{State: StateDegraded},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsUnhealthy(); got != tt.want {
				t.Errorf("Status.IsUnhealthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_WithLatency(t *testing.T) {
	original := NewHealthy("comp", "msg")

	updated := original.WithLatency(42 * time.Millisecond)

	if updated.Latency != 42*time.Millisecond {
		t.Errorf("Expected latency 42ms, got %v", updated.Latency)
	}

	if original.Latency != 0 {
		t.Error("WithLatency should not modify the original status")
	}

	if updated.Component != original.Component || updated.State != original.State {
		t.Error("WithLatency should preserve the other fields")
	}
}
