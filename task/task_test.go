package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestGroupCancelsOnFirstError(t *testing.T) {
	var g = NewGroup(context.Background())

	g.Queue("fails", func() error { return errors.New("whoops") })
	g.Queue("waits", func() error {
		<-g.Context().Done()
		return nil
	})
	require.Panics(t, func() { _ = g.Wait() })

	g.GoRun()
	require.EqualError(t, g.Wait(), "fails: whoops")
	require.Panics(t, func() { g.Queue("late", nil) })
	require.Panics(t, func() { g.GoRun() })
}

func TestGroupSucceeds(t *testing.T) {
	var g = NewGroup(context.Background())
	var mu sync.Mutex
	var count int

	for i := 0; i != 5; i++ {
		g.Queue("inc", func() error {
			defer mu.Unlock()
			mu.Lock()
			count++
			return nil
		})
	}
	g.GoRun()
	require.NoError(t, g.Wait())
	require.Equal(t, 5, count)
	require.Error(t, g.Context().Err())
}

func TestDispatcherRunsInDueOrder(t *testing.T) {
	var d = NewDispatcher()
	go d.Serve()

	var out = make(chan string, 4)
	var post = func(delay time.Duration, name string) {
		d.Post(delay, name, func() error {
			out <- name
			return nil
		})
	}
	post(30*time.Millisecond, "third")
	post(0, "first")
	post(10*time.Millisecond, "second")

	require.Equal(t, "first", <-out)
	require.Equal(t, "second", <-out)
	require.Equal(t, "third", <-out)
	require.Equal(t, 0, d.Len())

	d.Finish()
}

func TestDispatcherSurvivesFailuresAndPanics(t *testing.T) {
	var d = NewDispatcher()
	go d.Serve()

	var done = make(chan struct{})
	d.Post(0, "errors", func() error { return errors.New("failed") })
	d.Post(0, "panics", func() error { panic("boom") })
	d.Post(0, "succeeds", func() error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not run task")
	}
	d.Finish()
}

func TestDispatcherFinishDropsPending(t *testing.T) {
	var d = NewDispatcher()
	go d.Serve()

	var ran bool
	d.Post(time.Hour, "later", func() error {
		ran = true
		return nil
	})
	require.Equal(t, 1, d.Len())

	d.Finish()
	require.Equal(t, 0, d.Len())

	// Posts after Finish are dropped.
	d.Post(0, "after", func() error {
		ran = true
		return nil
	})
	require.Equal(t, 0, d.Len())
	require.False(t, ran)
}
