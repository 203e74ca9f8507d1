package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "fedoffice/pkg/domain"
)

const (
	// dedupTTL is a safety valve: if a worker dies between dequeue and
	// release, the transfer becomes enqueueable again after this window.
	dedupTTL = 24 * time.Hour

	dequeueBlock = time.Second
)

// Redis is the production queue. Jobs wait on a list, scheduled retries on
// a sorted set scored by their due time, and a per-transfer dedup key
// guards against competing jobs.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (q *Redis) Enabled() bool { return true }

// Enqueue submits the transfer unless a job for it is already in flight.
// The returned bool reports whether a new job was queued.
func (q *Redis) Enqueue(ctx context.Context, transferID id.TransferID) (bool, error) {
	acquired, err := q.client.SetNX(ctx, dedupKey(transferID.String()), "1", dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire export dedup: %w", err)
	}
	if !acquired {
		return false, nil
	}

	if err := q.push(ctx, Job{TransferID: transferID.String(), Attempt: 1}); err != nil {
		// Give the dedup key back so a later enqueue can retry.
		q.client.Del(ctx, dedupKey(transferID.String()))
		return false, err
	}
	return true, nil
}

// ForceEnqueue bypasses deduplication, re-arming the dedup key and queueing
// a fresh job regardless of previous outcomes.
func (q *Redis) ForceEnqueue(ctx context.Context, transferID id.TransferID) error {
	if err := q.client.Set(ctx, dedupKey(transferID.String()), "1", dedupTTL).Err(); err != nil {
		return fmt.Errorf("arm export dedup: %w", err)
	}
	return q.push(ctx, Job{TransferID: transferID.String(), Attempt: 1})
}

func (q *Redis) push(ctx context.Context, job Job) error {
	raw, err := job.encode()
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, jobsKey, raw).Err(); err != nil {
		return fmt.Errorf("push export job: %w", err)
	}
	return nil
}

// Dequeue promotes due retries, then blocks briefly for the next job.
// It returns (nil, nil) when nothing is ready.
func (q *Redis) Dequeue(ctx context.Context) (*Job, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}

	res, err := q.client.BRPop(ctx, dequeueBlock, jobsKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop export job: %w", err)
	}
	// BRPOP returns [key, value].
	return decodeJob(res[1])
}

// promoteDue moves retry entries whose due time has passed back onto the
// jobs list. ZREM decides the winner when several workers promote the same
// entry concurrently.
func (q *Redis) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := q.client.ZRangeByScore(ctx, retryKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return fmt.Errorf("list due retries: %w", err)
	}
	for _, raw := range due {
		removed, err := q.client.ZRem(ctx, retryKey, raw).Result()
		if err != nil {
			return fmt.Errorf("claim due retry: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, jobsKey, raw).Err(); err != nil {
			return fmt.Errorf("promote due retry: %w", err)
		}
	}
	return nil
}

// Retry schedules the next attempt of the job after the given delay.
func (q *Redis) Retry(ctx context.Context, job *Job, delay time.Duration) error {
	raw, err := Job{TransferID: job.TransferID, Attempt: job.Attempt + 1}.encode()
	if err != nil {
		return err
	}
	due := float64(time.Now().Add(delay).Unix())
	if err := q.client.ZAdd(ctx, retryKey, redis.Z{Score: due, Member: raw}).Err(); err != nil {
		return fmt.Errorf("schedule export retry: %w", err)
	}
	return nil
}

// Release drops the dedup key once the transfer reached a terminal export
// outcome, making a future re-enqueue possible.
func (q *Redis) Release(ctx context.Context, transferID string) error {
	if err := q.client.Del(ctx, dedupKey(transferID)).Err(); err != nil {
		return fmt.Errorf("release export dedup: %w", err)
	}
	return nil
}
