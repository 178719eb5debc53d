package workerpool

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunLimitsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	items := make([]int, 20)

	err := Run(context.Background(), items, 3, func(context.Context, int) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", got)
	}
}

func TestRunReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(context.Background(), []int{1, 2, 3}, 1, func(_ context.Context, n int) error {
		if n == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
}

func TestRunEmpty(t *testing.T) {
	called := false
	err := Run(context.Background(), nil, 4, func(context.Context, int) error {
		called = true
		return nil
	})
	if err != nil || called {
		t.Fatalf("Run(nil) = %v, called = %v", err, called)
	}
}

func TestMapKeepsOrderAndSkips(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	got := Map(context.Background(), items, 4, func(_ context.Context, n int) (string, bool) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return strconv.Itoa(n), n != 4
	})

	want := []string{"5", "1", "2", "3"}
	if len(got) != len(want) {
		t.Fatalf("Map = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Map = %v, want %v", got, want)
		}
	}
}
