package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestRegisterTask(t *testing.T) {
	s := newTestScheduler(t)

	cfg := TaskConfig{
		ID:   "demo",
		Name: "Demo",
		Cron: "0 * * * *",
		Func: func(ctx context.Context) error { return nil },
	}
	if err := s.RegisterTask(cfg); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}
	if err := s.RegisterTask(cfg); err == nil {
		t.Error("duplicate registration must fail")
	}

	tasks := s.ListTasks()
	if len(tasks) != 1 || tasks[0].ID != "demo" {
		t.Errorf("ListTasks = %+v", tasks)
	}

	if _, err := s.GetTask("demo"); err != nil {
		t.Errorf("GetTask failed: %v", err)
	}
	if _, err := s.GetTask("missing"); err == nil {
		t.Error("GetTask on unknown id must fail")
	}
}

func TestRegisterTaskDefaultsNameToID(t *testing.T) {
	s := newTestScheduler(t)

	err := s.RegisterTask(TaskConfig{
		ID:   "unnamed",
		Cron: "0 * * * *",
		Func: func(ctx context.Context) error { return nil },
	})
	if err != nil {
		t.Fatalf("RegisterTask without a name failed: %v", err)
	}

	info, err := s.GetTask("unnamed")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if info.Name != "unnamed" {
		t.Errorf("Name = %q, want the task id", info.Name)
	}
}

func TestRegisterTaskBadCron(t *testing.T) {
	s := newTestScheduler(t)

	err := s.RegisterTask(TaskConfig{
		ID:   "broken",
		Cron: "not a cron",
		Func: func(ctx context.Context) error { return nil },
	})
	if err == nil {
		t.Error("invalid cron expression must fail registration")
	}
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan struct{})
	err := s.RegisterTask(TaskConfig{
		ID:   "demo",
		Cron: "0 * * * *",
		Func: func(ctx context.Context) error {
			close(ran)
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.RunNow("missing"); err == nil {
		t.Error("RunNow on unknown id must fail")
	}
	if err := s.RunNow("demo"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}
