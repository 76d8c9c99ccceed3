package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks how much of a job is done. Simulation code updates it
// while the server reads it.
type ProgressBar struct {
	mu sync.Mutex

	ID        string
	Name      string
	StartTime time.Time
	Total     uint64

	finished   uint64
	inProgress uint64
}

// IncrementInProgress marks items as started.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.mu.Lock()
	b.inProgress += amount
	b.mu.Unlock()
}

// IncrementFinished marks items as done without passing through started.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.mu.Lock()
	b.finished += amount
	b.mu.Unlock()
}

// MoveInProgressToFinished marks started items as done.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if amount > b.inProgress {
		amount = b.inProgress
	}

	b.inProgress -= amount
	b.finished += amount
}

// Counts returns the finished and started item counts.
func (b *ProgressBar) Counts() (finished, inProgress uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.finished, b.inProgress
}

type progressBarRsp struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

func (b *ProgressBar) snapshot() progressBarRsp {
	finished, inProgress := b.Counts()

	return progressBarRsp{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   finished,
		InProgress: inProgress,
	}
}
