package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegister_RejectsInvalidSpec(t *testing.T) {
	s := NewScheduler(context.Background(), zap.NewNop())
	err := s.Register("every morning", func(context.Context) error { return nil })
	require.Error(t, err)

	// five-field specs lack the seconds field
	require.Error(t, s.Register("0 6 * * *", func(context.Context) error { return nil }))
}

func TestRunNow(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(context.Background(), zap.NewNop())
	require.NoError(t, s.Register("0 0 6 * * *", func(context.Context) error {
		calls.Add(1)
		return errors.New("ignored")
	}))

	s.RunNow()
	s.RunNow()
	assert.Equal(t, int32(2), calls.Load())
}

func TestRunNow_SkipsWhileRunning(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	s := NewScheduler(context.Background(), zap.NewNop())
	require.NoError(t, s.Register("0 0 6 * * *", func(context.Context) error {
		calls.Add(1)
		close(started)
		<-release
		return nil
	}))

	done := make(chan struct{})
	go func() {
		s.RunNow()
		close(done)
	}()
	<-started
	s.RunNow()
	close(release)
	<-done

	assert.Equal(t, int32(1), calls.Load())
}

func TestScheduledRun(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := NewScheduler(context.Background(), zap.NewNop())
	require.NoError(t, s.Register("* * * * * *", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}))
	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
