package models

import "encoding/json"

// WorkflowType selects how workflow members are ordered.
type WorkflowType string

const (
	// WorkflowSerial runs members strictly in list order.
	WorkflowSerial WorkflowType = "serial"
	// WorkflowParallel runs members concurrently as their dependencies
	// complete.
	WorkflowParallel WorkflowType = "parallel"
)

func (w WorkflowType) Valid() bool {
	return w == WorkflowSerial || w == WorkflowParallel
}

// FailurePolicy decides what a member failure does to the rest of the
// workflow.
type FailurePolicy string

const (
	// FailurePolicyStop aborts all not-yet-started members after a failure.
	FailurePolicyStop FailurePolicy = "stop"
	// FailurePolicyContinue records the failure and keeps going. Members
	// downstream of the failed one are still skipped.
	FailurePolicyContinue FailurePolicy = "continue"
)

func (p FailurePolicy) Valid() bool {
	return p == FailurePolicyStop || p == FailurePolicyContinue
}

// WorkflowMember references a task inside a workflow. Dependencies name
// other members by task id; they are meaningful for parallel workflows and
// must resolve inside the workflow itself.
type WorkflowMember struct {
	TaskID       uint   `json:"task_id"`
	Name         string `json:"name,omitempty"`
	Dependencies []uint `json:"dependencies,omitempty"`
}

// WorkflowConfig is the decoded form of a WORKFLOW task's config document.
type WorkflowConfig struct {
	WorkflowType WorkflowType     `json:"workflow_type"`
	Tasks        []WorkflowMember `json:"tasks"`
	OnFailure    FailurePolicy    `json:"on_failure,omitempty"`
}

// MemberIDs returns the member task ids in list order.
func (c *WorkflowConfig) MemberIDs() []uint {
	ids := make([]uint, 0, len(c.Tasks))
	for _, m := range c.Tasks {
		ids = append(ids, m.TaskID)
	}
	return ids
}

// DecodeWorkflowConfig extracts a workflow definition from a task config
// document. A missing on_failure defaults to stop. Shape problems come back
// as ConfigurationError; semantic validation (membership, enablement,
// cycles) is the workflow executor's concern.
func DecodeWorkflowConfig(cfg map[string]interface{}) (*WorkflowConfig, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, NewConfigurationError("workflow config is not a JSON document: %v", err)
	}
	var wc WorkflowConfig
	if err := json.Unmarshal(raw, &wc); err != nil {
		return nil, NewConfigurationError("workflow config does not match the expected shape: %v", err)
	}
	if wc.OnFailure == "" {
		wc.OnFailure = FailurePolicyStop
	}
	return &wc, nil
}
