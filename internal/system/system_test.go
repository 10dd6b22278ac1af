package system

import (
	"context"
	"testing"
	"time"
)

func TestCurrent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping host sampling in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := Current(ctx)
	if err != nil {
		t.Fatalf("Current() returned error: %v", err)
	}

	if snap.CPUPercent < 0 || snap.CPUPercent > 100 {
		t.Errorf("CPUPercent = %f, out of range", snap.CPUPercent)
	}
	if snap.RAMPercent <= 0 || snap.RAMPercent > 100 {
		t.Errorf("RAMPercent = %f, out of range", snap.RAMPercent)
	}
	if snap.RAMTotal == 0 {
		t.Error("RAMTotal should be non-zero")
	}
	if snap.RAMFree > snap.RAMTotal {
		t.Errorf("RAMFree %d exceeds RAMTotal %d", snap.RAMFree, snap.RAMTotal)
	}
}
