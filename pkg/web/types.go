// Package web provides the HTTP API for ingesting and reading execution snapshots.
package web

import "github.com/dukex/flytestate/pkg/models"

// MIMEApplicationProtobuf marks bodies carrying the binary wire encoding.
const MIMEApplicationProtobuf = "application/x-protobuf"

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ExecutionListResponse is the body of GET /executions.
type ExecutionListResponse struct {
	Executions []models.ExecutionView `json:"executions"`
	Pagination Pagination             `json:"pagination"`
	Sort       string                 `json:"sort"`
}

type TaskExecutionListResponse struct {
	TaskExecutions []models.TaskExecution `json:"task_executions"`
}
