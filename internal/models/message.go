package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = errors.New("no messages in queue")

// TaskMessage is the structure stored in the queue. The payload is
// deliberately small and replay-safe: the job id plus stage identifiers,
// never artifact data. Chain is the ordered remainder of the workflow after
// Stage; the queue runtime enqueues the successor only after the current
// stage succeeds.
type TaskMessage struct {
	JobID uint64      `json:"job_id"`
	Stage StageType   `json:"stage"`
	Chain []StageType `json:"chain,omitempty"`
}

// NewTaskMessage builds the message for the first stage of a workflow
// descriptor. The descriptor must contain at least one stage.
func NewTaskMessage(jobID uint64, chain []StageType) (TaskMessage, error) {
	if len(chain) == 0 {
		return TaskMessage{}, errors.New("workflow chain is empty")
	}
	return TaskMessage{
		JobID: jobID,
		Stage: chain[0],
		Chain: chain[1:],
	}, nil
}

// Next returns the message for the following stage in the chain, or false
// when the current stage is the last one.
func (m TaskMessage) Next() (TaskMessage, bool) {
	if len(m.Chain) == 0 {
		return TaskMessage{}, false
	}
	return TaskMessage{
		JobID: m.JobID,
		Stage: m.Chain[0],
		Chain: m.Chain[1:],
	}, true
}

// Validate validates the task message
func (m TaskMessage) Validate() error {
	if m.JobID == 0 {
		return errors.New("task message job id is required")
	}
	if !m.Stage.IsValid() {
		return fmt.Errorf("unknown stage type: %s", m.Stage)
	}
	for _, s := range m.Chain {
		if !s.IsValid() {
			return fmt.Errorf("unknown stage type in chain: %s", s)
		}
	}
	return nil
}

// ToJSON serializes the task message for queue storage
func (m TaskMessage) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task message: %w", err)
	}
	return data, nil
}

// TaskMessageFromJSON deserializes a task message from queue storage
func TaskMessageFromJSON(data []byte) (TaskMessage, error) {
	var msg TaskMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return TaskMessage{}, fmt.Errorf("failed to unmarshal task message: %w", err)
	}
	return msg, nil
}
