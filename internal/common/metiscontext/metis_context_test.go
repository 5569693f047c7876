package metiscontext

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var defaultLogger = logrus.NewEntry(logrus.New()).WithField("foo", "bar")

func TestNew(t *testing.T) {
	ctx := New(context.Background(), defaultLogger)
	require.Equal(t, defaultLogger, ctx.Log)
	require.Equal(t, context.Background(), ctx.Context)
}

func TestBackground(t *testing.T) {
	ctx := Background()
	require.Equal(t, ctx.Context, context.Background())
}

func TestWithLogField(t *testing.T) {
	ctx := WithLogField(Background(), "fish", "chips")
	require.Equal(t, context.Background(), ctx.Context)
	require.Equal(t, logrus.Fields{"fish": "chips"}, ctx.Log.Data)
}

func TestWithTimeout(t *testing.T) {
	ctx, _ := WithTimeout(Background(), 100*time.Millisecond)
	testDeadline(t, ctx)
}

func TestWithDeadline(t *testing.T) {
	ctx, _ := WithDeadline(Background(), time.Now().Add(100*time.Millisecond))
	testDeadline(t, ctx)
}

func TestWithValue(t *testing.T) {
	ctx := WithValue(Background(), "foo", "bar")
	require.Equal(t, "bar", ctx.Value("foo"))
}

func TestErrGroupPropagatesCancellation(t *testing.T) {
	parent, cancel := WithCancel(Background())
	g, ctx := ErrGroup(parent)
	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})
	cancel()
	require.ErrorIs(t, g.Wait(), context.Canceled)
}

func testDeadline(t *testing.T, c *Context) {
	t.Helper()
	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
		t.Fatal("context not timed out")
	case <-c.Done():
	}
	require.Equal(t, context.DeadlineExceeded, c.Err())
}
