package progress

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadUnknownToken(t *testing.T) {
	tr := NewTracker()
	_, err := tr.Read("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPercentClamped(t *testing.T) {
	tr := NewTracker()
	tr.Init("a")

	tr.SetPercent("a", -20)
	r, err := tr.Read("a")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Percent)

	tr.SetPercent("a", 250)
	r, _ = tr.Read("a")
	assert.Equal(t, 100, r.Percent)
}

func TestPercentMonotonic(t *testing.T) {
	tr := NewTracker()
	tr.SetPercent("a", 40)
	tr.SetPercent("a", 15)
	r, err := tr.Read("a")
	require.NoError(t, err)
	assert.Equal(t, 40, r.Percent)
}

func TestWriteCreatesRecord(t *testing.T) {
	tr := NewTracker()
	tr.Log("new", "hola")
	r, err := tr.Read("new")
	require.NoError(t, err)
	require.Len(t, r.Logs, 1)
	assert.Equal(t, "hola", r.Logs[0].Message)
	assert.False(t, r.Logs[0].Time.IsZero())
}

func TestEmptyTokenIgnored(t *testing.T) {
	tr := NewTracker()
	tr.Init("")
	tr.Log("", "x")
	tr.SetPercent("", 10)
	assert.Equal(t, 0, tr.Len())
}

func TestLogCap(t *testing.T) {
	tr := NewTracker(WithLogCap(3))
	for i := 0; i < 5; i++ {
		tr.Log("a", fmt.Sprintf("m%d", i))
	}
	r, err := tr.Read("a")
	require.NoError(t, err)
	require.Len(t, r.Logs, 3)
	assert.Equal(t, "m2", r.Logs[0].Message)
	assert.Equal(t, "m4", r.Logs[2].Message)
}

func TestDoneIsSticky(t *testing.T) {
	tr := NewTracker()
	tr.SetPercent("a", 50)
	tr.SetDone("a", DoneInfo{ID: 7, Title: "El zorro"})
	tr.SetPercent("a", 10)
	tr.SetError("a", errors.New("late"))

	r, err := tr.Read("a")
	require.NoError(t, err)
	assert.True(t, r.Done)
	assert.Empty(t, r.Error)
	assert.Equal(t, 100, r.Percent)
	require.NotNil(t, r.Result)
	assert.Equal(t, int64(7), r.Result.ID)
	assert.True(t, r.Terminal())
}

func TestErrorIsSticky(t *testing.T) {
	tr := NewTracker()
	tr.SetPercent("a", 15)
	tr.SetError("a", errors.New("texto insuficiente"))
	tr.SetPercent("a", 90)
	tr.SetDone("a", DoneInfo{ID: 1})

	r, err := tr.Read("a")
	require.NoError(t, err)
	assert.Equal(t, "texto insuficiente", r.Error)
	assert.False(t, r.Done)
	assert.Equal(t, 15, r.Percent)
	assert.Nil(t, r.Result)
}

func TestSetErrorNil(t *testing.T) {
	tr := NewTracker()
	tr.SetError("a", nil)
	r, err := tr.Read("a")
	require.NoError(t, err)
	assert.Equal(t, "unknown error", r.Error)
}

func TestInitResets(t *testing.T) {
	tr := NewTracker()
	tr.SetPercent("a", 60)
	tr.Log("a", "x")
	tr.Init("a")
	r, err := tr.Read("a")
	require.NoError(t, err)
	assert.Zero(t, r.Percent)
	assert.Empty(t, r.Logs)
}

func TestReadReturnsCopy(t *testing.T) {
	tr := NewTracker()
	tr.Log("a", "uno")
	tr.SetDone("a", DoneInfo{ID: 1, Title: "t"})

	r, err := tr.Read("a")
	require.NoError(t, err)
	r.Logs[0].Message = "changed"
	r.Result.Title = "changed"

	again, _ := tr.Read("a")
	assert.Equal(t, "uno", again.Logs[0].Message)
	assert.Equal(t, "t", again.Result.Title)
}

func TestExpiry(t *testing.T) {
	tr := NewTracker(WithTTL(20 * time.Millisecond))
	tr.Init("a")
	time.Sleep(40 * time.Millisecond)
	_, err := tr.Read("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentWriters(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok := fmt.Sprintf("t%d", i%4)
			tr.Log(tok, "x")
			tr.SetPercent(tok, i*5)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, tr.Len())
	r, err := tr.Read("t3")
	require.NoError(t, err)
	assert.Equal(t, 95, r.Percent)
}

func TestNewToken(t *testing.T) {
	a, b := NewToken(), NewToken()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
