package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type trace struct {
	visited []string
	value   int
}

func record(name string, delta int) Step[trace] {
	return Step[trace]{
		Name: name,
		Fn: func(_ context.Context, c trace) (trace, error) {
			c.visited = append(c.visited, name)
			c.value += delta
			return c, nil
		},
	}
}

func failing(name string, err error) Step[trace] {
	return Step[trace]{
		Name: name,
		Fn: func(_ context.Context, c trace) (trace, error) {
			c.visited = append(c.visited, name)
			return c, err
		},
	}
}

func TestRun_StepsExecuteInOrder(t *testing.T) {
	p := New("ordered", record("tiling", 1), record("split", 10), record("validate", 100))

	if p.Status() != NotStarted {
		t.Errorf("Status() before run = %v, want %v", p.Status(), NotStarted)
	}

	got, err := p.Run(context.Background(), trace{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"tiling", "split", "validate"}
	if diff := cmp.Diff(want, got.visited); diff != "" {
		t.Errorf("visited mismatch (-want +got):\n%s", diff)
	}
	if got.value != 111 {
		t.Errorf("value = %d, want 111", got.value)
	}
	if p.Status() != Completed {
		t.Errorf("Status() = %v, want %v", p.Status(), Completed)
	}
	if diff := cmp.Diff(want, p.Completed()); diff != "" {
		t.Errorf("Completed() mismatch (-want +got):\n%s", diff)
	}
	if p.FailedStep() != "" {
		t.Errorf("FailedStep() = %q, want empty", p.FailedStep())
	}
}

func TestRun_AbortsOnFirstFailure(t *testing.T) {
	boom := errors.New("splitter exploded")
	p := New("abort", record("tiling", 1), failing("split", boom), record("validate", 100))

	got, err := p.Run(context.Background(), trace{})
	if err != boom {
		t.Fatalf("Run error = %v, want the step error unmodified", err)
	}

	// The context returned is the one left by the last successful step.
	if diff := cmp.Diff([]string{"tiling"}, got.visited); diff != "" {
		t.Errorf("visited mismatch (-want +got):\n%s", diff)
	}
	if p.Status() != Failed {
		t.Errorf("Status() = %v, want %v", p.Status(), Failed)
	}
	if p.FailedStep() != "split" {
		t.Errorf("FailedStep() = %q, want %q", p.FailedStep(), "split")
	}
	if diff := cmp.Diff([]string{"tiling"}, p.Completed()); diff != "" {
		t.Errorf("Completed() mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_ValueContextIsNotShared(t *testing.T) {
	p := New("copy", record("a", 5))

	in := trace{value: 1}
	out, err := p.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if in.value != 1 {
		t.Errorf("input context mutated: value = %d", in.value)
	}
	if out.value != 6 {
		t.Errorf("output value = %d, want 6", out.value)
	}
}

func TestRun_CanceledContextStopsBeforeNextStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cancelling := Step[trace]{
		Name: "first",
		Fn: func(_ context.Context, c trace) (trace, error) {
			c.visited = append(c.visited, "first")
			cancel()
			return c, nil
		},
	}
	p := New("cancel", cancelling, record("second", 1))

	got, err := p.Run(ctx, trace{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if diff := cmp.Diff([]string{"first"}, got.visited); diff != "" {
		t.Errorf("visited mismatch (-want +got):\n%s", diff)
	}
	if p.FailedStep() != "second" {
		t.Errorf("FailedStep() = %q, want %q", p.FailedStep(), "second")
	}
}

func TestRun_SecondRunRejected(t *testing.T) {
	p := New("once", record("a", 1))
	if _, err := p.Run(context.Background(), trace{}); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if _, err := p.Run(context.Background(), trace{}); !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("second Run error = %v, want ErrAlreadyRun", err)
	}
}

func TestRun_EmptyPipelineCompletes(t *testing.T) {
	p := New[trace]("empty")
	if _, err := p.Run(context.Background(), trace{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if p.Status() != Completed {
		t.Errorf("Status() = %v, want %v", p.Status(), Completed)
	}
}

func TestNew_RejectsInvalidSteps(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step[trace]
	}{
		{"empty name", []Step[trace]{{Name: "", Fn: record("x", 0).Fn}}},
		{"nil function", []Step[trace]{{Name: "x"}}},
		{"duplicate", []Step[trace]{record("x", 0), record("x", 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			New("bad", tt.steps...)
		})
	}
}

func TestSteps(t *testing.T) {
	p := New("names", record("tiling", 0), record("split_and_redistribute", 0), record("validate", 0))
	want := []string{"tiling", "split_and_redistribute", "validate"}
	if diff := cmp.Diff(want, p.Steps()); diff != "" {
		t.Errorf("Steps() mismatch (-want +got):\n%s", diff)
	}
	if p.Name() != "names" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestStatusString(t *testing.T) {
	if Failed.String() != "failed" || Status(42).String() != "status(42)" {
		t.Errorf("unexpected Status strings: %s, %s", Failed, Status(42))
	}
}
