package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalTriggers(t *testing.T) {
	var fired atomic.Int32
	s, err := New(10*time.Millisecond, "", func(ctx context.Context) { fired.Add(1) }, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(5 * time.Second)
	for fired.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d triggers before deadline", fired.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestStopHaltsLoop(t *testing.T) {
	var fired atomic.Int32
	s, err := New(5*time.Millisecond, "", func(ctx context.Context) { fired.Add(1) }, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start(context.Background())
	s.Stop()

	n := fired.Load()
	time.Sleep(30 * time.Millisecond)
	if fired.Load() != n {
		t.Fatal("trigger fired after Stop")
	}
}

func TestInvalidCronExpression(t *testing.T) {
	if _, err := New(0, "not a cron expr", func(ctx context.Context) {}, nil); err == nil {
		t.Fatal("expected error for invalid expression")
	}
}

func TestValidCronExpressionAccepted(t *testing.T) {
	s, err := New(0, "*/5 * * * *", func(ctx context.Context) {}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.schedule == nil {
		t.Fatal("schedule not parsed")
	}
}

func TestDisabledSchedulerIsNoOp(t *testing.T) {
	s, err := New(0, "", func(ctx context.Context) { t.Error("trigger fired") }, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start(context.Background())
	s.Stop()
}
