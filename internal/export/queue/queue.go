// Package queue implements the export job queue. Enqueue deduplicates per
// transfer so that repeated approvals or retries of the approve endpoint
// never produce two competing export jobs for the same transfer.
package queue

import (
	"encoding/json"
	"fmt"
)

const (
	jobsKey  = "export:jobs"
	retryKey = "export:retry"

	dedupPrefix = "export:dedup:transfer:"
)

// Job is one unit of export work. Attempt counts deliveries of this
// transfer to the worker, starting at 1.
type Job struct {
	TransferID string `json:"transferId"`
	Attempt    int    `json:"attempt"`
}

func (j Job) encode() (string, error) {
	raw, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("encode export job: %w", err)
	}
	return string(raw), nil
}

func decodeJob(raw string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decode export job: %w", err)
	}
	return &job, nil
}

func dedupKey(transferID string) string {
	return dedupPrefix + transferID
}
