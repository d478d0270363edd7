package progress_test

import (
	"testing"

	"github.com/orgball2608/reddit-research-bot/internal/progress"
	"github.com/stretchr/testify/assert"
)

func TestChannelSinkDropsWhenFull(t *testing.T) {
	s := progress.NewChannelSink(2)
	s.Emit(progress.Status("a"))
	s.Emit(progress.Status("b"))
	s.Emit(progress.Status("c"))
	s.Close()

	var got []string
	for e := range s.Events() {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"a", "b"}, got)
	assert.EqualValues(t, 1, s.Dropped())
}

func TestRecorderProgress(t *testing.T) {
	r := &progress.Recorder{}
	r.Emit(progress.Status("start"))
	r.Emit(progress.Progress(10, 20, 3))
	r.Emit(progress.Progress(20, 20, 5))

	assert.Len(t, r.Events, 3)
	assert.Equal(t, []progress.Event{
		{Kind: progress.KindProgress, Done: 10, Total: 20, Relevant: 3},
		{Kind: progress.KindProgress, Done: 20, Total: 20, Relevant: 5},
	}, r.Progress())
}

func TestSinkFunc(t *testing.T) {
	var n int
	var s progress.Sink = progress.SinkFunc(func(progress.Event) { n++ })
	s.Emit(progress.Status("x"))
	progress.Discard.Emit(progress.Status("y"))
	assert.Equal(t, 1, n)
}
