package game

import (
	"container/list"
	"sync"

	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
)

// TurnJob is one pending player generation: the actor, the prompt built
// for it against the post-narrator state and its slot in roster order
type TurnJob struct {
	Index  int
	Actor  campaign.RosterActor
	Prompt string
}

// JobQueue hands out the player turns of a round to generation workers in
// roster order. Safe for concurrent use.
type JobQueue struct {
	mu      sync.Mutex
	pending *list.List // *TurnJob
}

// NewJobQueue creates a new job queue
func NewJobQueue() *JobQueue {
	return &JobQueue{
		pending: list.New(),
	}
}

// Enqueue adds a job to the queue
func (jq *JobQueue) Enqueue(job *TurnJob) {
	jq.mu.Lock()
	defer jq.mu.Unlock()
	jq.pending.PushBack(job)
}

// Dequeue pops the oldest job; false when the queue is empty
func (jq *JobQueue) Dequeue() (*TurnJob, bool) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	front := jq.pending.Front()
	if front == nil {
		return nil, false
	}
	jq.pending.Remove(front)
	return front.Value.(*TurnJob), true
}

// Count returns the number of pending jobs
func (jq *JobQueue) Count() int {
	jq.mu.Lock()
	defer jq.mu.Unlock()
	return jq.pending.Len()
}
