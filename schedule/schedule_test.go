package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsbridge/dao"
	"jsbridge/dao/model"
	"jsbridge/job"
)

func Test_resolveCron(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	type args struct {
		str string
	}
	tests := []struct {
		name    string
		args    args
		want    time.Duration
		wantErr bool
	}{
		{
			name: "2099 year, everyday 8:15 am.",
			args: args{str: "0 15 8 * * * 2099"},
			want: time.Date(2099, 1, 1, 8, 15, 0, 0, time.Local).Sub(now),
		},
		{
			name: "every minute",
			args: args{str: "0 * * * * * *"},
			want: time.Minute,
		},
		{
			name:    "2021 year, everyday 8:15 am.",
			args:    args{"0 15 8 * * * 2021"},
			wantErr: true,
		},
		{
			name:    "garbage",
			args:    args{"not a cron"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveCron(tt.args.str, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPositionAndCircle(t *testing.T) {
	tw := makeTimeWheel(time.Second, 10)
	tw.currentPos = 3

	pos, circle := tw.getPositionAndCircle(0)
	assert.Equal(t, 3, pos)
	assert.Equal(t, 0, circle)

	pos, circle = tw.getPositionAndCircle(1500 * time.Millisecond)
	assert.Equal(t, 4, pos)
	assert.Equal(t, 0, circle)

	pos, circle = tw.getPositionAndCircle(10 * time.Second)
	assert.Equal(t, 2, pos)
	assert.Equal(t, 0, circle)

	pos, circle = tw.getPositionAndCircle(25 * time.Second)
	assert.Equal(t, 7, pos)
	assert.Equal(t, 2, circle)
}

func TestTimeWheelRunsAndRemoves(t *testing.T) {
	tw := makeTimeWheel(5*time.Millisecond, 8)
	tw.start()
	defer tw.stop()

	fired := make(chan string, 4)
	tw.addJob(0, "a", func() { fired <- "a" })
	tw.addJob(80*time.Millisecond, "b", func() { fired <- "b" })
	tw.addJob(20*time.Millisecond, "c", func() { fired <- "c" })
	tw.removeJob("c")
	tw.addJob(30*time.Millisecond, "a2", func() { fired <- "a2" })
	tw.addJob(10*time.Millisecond, "a2", func() { fired <- "replaced" })

	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case k := <-fired:
			got = append(got, k)
		case <-timeout:
			t.Fatalf("only fired %v", got)
		}
	}
	assert.ElementsMatch(t, []string{"a", "b", "replaced"}, got)
}

func TestTimeWheelRecoversPanics(t *testing.T) {
	tw := makeTimeWheel(5*time.Millisecond, 4)
	tw.start()
	defer tw.stop()

	ok := make(chan struct{})
	tw.addJob(0, "bad", func() { panic("boom") })
	tw.addJob(10*time.Millisecond, "good", func() { close(ok) })
	select {
	case <-ok:
	case <-time.After(2 * time.Second):
		t.Fatal("wheel stopped after a panicking job")
	}
}

func newTestSchedule() *StandaloneSchedule {
	return makeStandalone(dao.CreateMemoryDao(), nil, makeTimeWheel(5*time.Millisecond, 16))
}

func TestStandaloneOneShot(t *testing.T) {
	s := newTestSchedule()
	assert.ErrorIs(t, s.AddJob(&job.Job{JobId: "x", ExecAt: ptr(time.Now()), Function: func() {}}), ErrNotStarted)
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	var runs atomic.Int32
	at := time.Now().Add(20 * time.Millisecond)
	require.NoError(t, s.AddJob(&job.Job{JobId: "once", ExecAt: &at, Function: func() { runs.Add(1) }}))
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return len(s.Scheduled()) == 0 }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.AddJob(&job.Job{JobId: "none", Function: func() {}}), ErrNoTrigger)
}

func TestStandaloneCronRearms(t *testing.T) {
	s := newTestSchedule()
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	var runs atomic.Int32
	require.NoError(t, s.AddJob(job.CreateGolangJob("tick", func() { runs.Add(1) }, "* * * * * * *")))
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.CancelJob("tick"))
	assert.Empty(t, s.Scheduled())
	n := runs.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), n+1)
}

func TestStandaloneStateChange(t *testing.T) {
	d := dao.CreateMemoryDao()
	s := makeStandalone(d, job.NewRunner(nil, nil, d, time.Second), makeTimeWheel(5*time.Millisecond, 16))
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()
	ctx := context.Background()

	id, err := d.AddScript(ctx, model.ScriptEntity{Cron: "0 0 0 1 1 * 2099", State: model.Runnable})
	require.NoError(t, err)
	require.NoError(t, s.HandleJobStateChange(ctx, id, model.Runnable))
	assert.Equal(t, []string{id}, s.Scheduled())

	require.NoError(t, s.HandleJobStateChange(ctx, id, model.Stop))
	assert.Empty(t, s.Scheduled())
}

func ptr[T any](v T) *T { return &v }
