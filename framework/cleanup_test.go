package framework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"testing"

	"github.com/redhat/cloudkitty-tests/test/framework/volume"
)

func TestCleanupStack_RunsInReverseOrder(t *testing.T) {
	s := NewCleanupStack(slog.New(slog.DiscardHandler))

	var order []string
	for _, name := range []string{"volume", "service", "mapping"} {
		s.Push(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	if got := s.Pending(); !reflect.DeepEqual(got, []string{"mapping", "service", "volume"}) {
		t.Errorf("unexpected pending order %v", got)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	expected := []string{"mapping", "service", "volume"}
	if !reflect.DeepEqual(order, expected) {
		t.Errorf("expected %v, got %v", expected, order)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty stack after Run, got %d", s.Len())
	}
}

func TestCleanupStack_AttemptsEveryAction(t *testing.T) {
	s := NewCleanupStack(nil)

	errMapping := errors.New("mapping delete failed")
	errVolume := errors.New("volume in use")
	var attempted []string

	s.Push("volume", func(context.Context) error {
		attempted = append(attempted, "volume")
		return errVolume
	})
	s.Push("service", func(context.Context) error {
		attempted = append(attempted, "service")
		return nil
	})
	s.Push("mapping", func(context.Context) error {
		attempted = append(attempted, "mapping")
		return errMapping
	})

	err := s.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	if len(attempted) != 3 {
		t.Errorf("expected every action to be attempted, got %v", attempted)
	}

	var ce *CleanupError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CleanupError, got %T", err)
	}
	if len(ce.Errs) != 2 {
		t.Errorf("expected 2 errors, got %d", len(ce.Errs))
	}
	if !errors.Is(err, errMapping) || !errors.Is(err, errVolume) {
		t.Error("expected CleanupError to wrap both failures")
	}
}

func TestCleanupStack_NotFoundIsSuccess(t *testing.T) {
	s := NewCleanupStack(nil)
	s.Push("volume", func(context.Context) error {
		return fmt.Errorf("delete volume vol-1: %w", volume.ErrNotFound)
	})

	if err := s.Run(context.Background()); err != nil {
		t.Errorf("expected not found to count as deleted, got %v", err)
	}
}

func TestCleanupStack_SecondRunIsNoop(t *testing.T) {
	s := NewCleanupStack(nil)

	calls := 0
	s.Push("volume", func(context.Context) error {
		calls++
		return errors.New("boom")
	})

	if err := s.Run(context.Background()); err == nil {
		t.Error("expected first run to fail")
	}
	if err := s.Run(context.Background()); err != nil {
		t.Errorf("expected second run to be a no-op, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected action to run once, ran %d times", calls)
	}
}

func TestCleanupStack_Empty(t *testing.T) {
	if err := NewCleanupStack(nil).Run(context.Background()); err != nil {
		t.Errorf("expected nil for empty stack, got %v", err)
	}
}
