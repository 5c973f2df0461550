package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskContractAutoClose = "contracts.auto_close"

type ContractAutoClosePayload struct {
	ContractID string `json:"contractId"`
}

func NewContractAutoCloseTask(payload ContractAutoClosePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskContractAutoClose, data), nil
}

func ParseContractAutoClosePayload(task *asynq.Task) (ContractAutoClosePayload, error) {
	var payload ContractAutoClosePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ContractAutoClosePayload{}, err
	}
	return payload, nil
}

// autoCloseTaskID keys the task on the contract so a contract is never
// scheduled twice.
func autoCloseTaskID(contractID string) string {
	return "auto-close:" + contractID
}
