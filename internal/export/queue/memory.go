package queue

import (
	"context"
	"sync"
	"time"

	id "fedoffice/pkg/domain"
)

// Memory is an in-process queue with the same dedup and retry semantics as
// the Redis queue. It backs worker tests and single-node deployments that
// run without a queue backend but still want the export pipeline.
type Memory struct {
	mu      sync.Mutex
	jobs    []Job
	retries []scheduledJob
	dedup   map[string]struct{}
}

type scheduledJob struct {
	job Job
	due time.Time
}

func NewMemory() *Memory {
	return &Memory{dedup: make(map[string]struct{})}
}

func (q *Memory) Enabled() bool { return true }

func (q *Memory) Enqueue(_ context.Context, transferID id.TransferID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := transferID.String()
	if _, inFlight := q.dedup[key]; inFlight {
		return false, nil
	}
	q.dedup[key] = struct{}{}
	q.jobs = append(q.jobs, Job{TransferID: key, Attempt: 1})
	return true, nil
}

func (q *Memory) ForceEnqueue(_ context.Context, transferID id.TransferID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := transferID.String()
	q.dedup[key] = struct{}{}
	q.jobs = append(q.jobs, Job{TransferID: key, Attempt: 1})
	return nil
}

func (q *Memory) Dequeue(_ context.Context) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	remaining := q.retries[:0]
	for _, scheduled := range q.retries {
		if scheduled.due.After(now) {
			remaining = append(remaining, scheduled)
			continue
		}
		q.jobs = append(q.jobs, scheduled.job)
	}
	q.retries = remaining

	if len(q.jobs) == 0 {
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return &job, nil
}

func (q *Memory) Retry(_ context.Context, job *Job, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.retries = append(q.retries, scheduledJob{
		job: Job{TransferID: job.TransferID, Attempt: job.Attempt + 1},
		due: time.Now().Add(delay),
	})
	return nil
}

func (q *Memory) Release(_ context.Context, transferID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.dedup, transferID)
	return nil
}
