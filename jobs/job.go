package jobs

import (
	"time"

	"github.com/vocdoni/bonsai-local/types"
)

// Kind separates the identifier namespaces of proving sessions and SNARK
// conversions.
type Kind string

const (
	KindSession Kind = "session"
	KindSnark   Kind = "snark"
)

// Job is a snapshot of a registry record. Image and Input are set for
// sessions, Receipt for SNARK conversions. Result is only set once the job
// succeeded and Error only once it failed.
type Job struct {
	ID         string
	Kind       Kind
	Image      types.Digest
	Input      types.Digest
	Receipt    types.Digest
	State      State
	Result     types.Digest
	Error      string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Elapsed returns how long the job has been running, or ran, so far.
func (j Job) Elapsed() time.Duration {
	switch {
	case j.StartedAt.IsZero():
		return 0
	case j.FinishedAt.IsZero():
		return time.Since(j.StartedAt)
	default:
		return j.FinishedAt.Sub(j.StartedAt)
	}
}
