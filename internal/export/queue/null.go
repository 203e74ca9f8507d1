package queue

import (
	"context"

	id "fedoffice/pkg/domain"
)

// Null is the enqueuer used when no queue backend is provisioned. Every
// submission reports not queued so callers can flag the export as skipped.
type Null struct{}

func NewNull() Null { return Null{} }

func (Null) Enabled() bool { return false }

func (Null) Enqueue(context.Context, id.TransferID) (bool, error) { return false, nil }

func (Null) ForceEnqueue(context.Context, id.TransferID) error { return nil }
