package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversByType(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []string
	d.Subscribe(EventCodeIssued, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.Email)
		return nil
	})
	d.Subscribe(EventCodeIssued, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.Email)
		return nil
	})
	d.Subscribe(EventTokenIssued, func(context.Context, Event) error {
		t.Fatal("unexpected delivery")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventCodeIssued, Email: "alice@example.com"}))
	require.Equal(t, []string{"first:alice@example.com", "second:alice@example.com"}, got)
}

func TestDispatcherRunsAllHandlersOnError(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	calls := 0
	d.Subscribe(EventCodeRejected, func(context.Context, Event) error {
		calls++
		return boom
	})
	d.Subscribe(EventCodeRejected, func(context.Context, Event) error {
		calls++
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventCodeRejected})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, calls)
}
