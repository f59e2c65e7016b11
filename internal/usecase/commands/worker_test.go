package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sns-ingest/internal/domain"
)

type chanQueue struct {
	jobs chan domain.CommandJob
	mu   sync.Mutex
	acks []bool
}

func (q *chanQueue) Enqueue(_ context.Context, job domain.CommandJob) error {
	q.jobs <- job
	return nil
}

func (q *chanQueue) Receive(ctx context.Context) (domain.CommandJob, domain.AckFunc, error) {
	select {
	case <-ctx.Done():
		return domain.CommandJob{}, nil, ctx.Err()
	case job := <-q.jobs:
		return job, func(ok bool) error {
			q.mu.Lock()
			q.acks = append(q.acks, ok)
			q.mu.Unlock()
			return nil
		}, nil
	}
}

type echoExecutor struct{}

func (echoExecutor) Execute(_ context.Context, job domain.CommandJob) string {
	return "done " + job.Action
}

type recordingNotifier struct {
	mu      sync.Mutex
	chatIDs []int64
	texts   []string
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chatIDs = append(n.chatIDs, chatID)
	n.texts = append(n.texts, text)
	return n.err
}

func TestWorkerExecutesAndNotifies(t *testing.T) {
	queue := &chanQueue{jobs: make(chan domain.CommandJob, 3)}
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	w := NewWorker(queue, echoExecutor{}, notifier, zerolog.Nop())

	_ = queue.Enqueue(context.Background(), domain.CommandJob{Action: "stats"})
	_ = queue.Enqueue(context.Background(), domain.CommandJob{ID: "1", Action: "stats", ChatID: 42})
	_ = queue.Enqueue(context.Background(), domain.CommandJob{ID: "2", Action: "status"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		queue.mu.Lock()
		n := len(queue.acks)
		queue.mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("обработано только %d задач", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	for i, ok := range queue.acks {
		if !ok {
			t.Fatalf("задача %d должна быть подтверждена", i)
		}
	}
	if len(notifier.chatIDs) != 1 || notifier.chatIDs[0] != 42 || notifier.texts[0] != "done stats" {
		t.Fatalf("ответ отправляется только в чат задачи: %v %v", notifier.chatIDs, notifier.texts)
	}
}
