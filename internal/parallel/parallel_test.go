package parallel

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/hairlessvillager/region-diff/internal/config"
	"github.com/hairlessvillager/region-diff/internal/logging"
	"golang.org/x/xerrors"
)

func TestRunPreservesOrder(t *testing.T) {
	tasks := make([]int, 100)
	for i := range tasks {
		tasks[i] = i
	}
	out, err := Run(context.Background(), 8, tasks, nil, func(_ context.Context, v int) (int, error) {
		return v * v, nil
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, v := range out {
		if v != i*i {
			t.Fatalf("out[%d] = %d, want %d", i, v, i*i)
		}
	}
}

func TestRunWithCostIsDeterministic(t *testing.T) {
	tasks := []int{5, 1, 9, 3, 7}
	cost := func(v int) int { return v }
	out, err := Run(context.Background(), 3, tasks, cost, func(_ context.Context, v int) (int, error) {
		return v + 1, nil
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, v := range out {
		if v != tasks[i]+1 {
			t.Fatalf("out[%d] = %d, want %d", i, v, tasks[i]+1)
		}
	}
}

func TestRunPropagatesError(t *testing.T) {
	tasks := []int{1, 2, 3}
	_, err := Run(context.Background(), 2, tasks, nil, func(_ context.Context, v int) (int, error) {
		if v == 2 {
			return 0, xerrors.New("boom")
		}
		return v, nil
	}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRunRecoversPanic(t *testing.T) {
	tasks := []int{1, 2, 3}
	_, err := Run(context.Background(), 2, tasks, nil, func(_ context.Context, v int) (int, error) {
		if v == 2 {
			panic("boom")
		}
		return v, nil
	}, nil)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
}

func TestRunTracesWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(config.LogTrace, &buf)
	tasks := []int{1, 2, 3}
	_, err := Run(context.Background(), 2, tasks, nil, func(_ context.Context, v int) (int, error) {
		return v, nil
	}, logger)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(buf.String(), "parallel: task") {
		t.Fatalf("expected trace output, got %q", buf.String())
	}
}
