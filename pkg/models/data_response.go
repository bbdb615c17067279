package models

import (
	"github.com/dukex/flytestate/internal/wire"
	"google.golang.org/protobuf/encoding/protowire"
)

// DataResponse is the shared shape of the get-data responses: a cheap blob
// pointer and the fully materialized literal map for each side.
type DataResponse struct {
	Inputs      UrlBlob    `json:"inputs"`
	Outputs     UrlBlob    `json:"outputs"`
	FullInputs  LiteralMap `json:"full_inputs"`
	FullOutputs LiteralMap `json:"full_outputs"`
}

// dataLayout holds the field numbers of the url blobs, which differ between
// the workflow response and the task/node responses.
type dataLayout struct {
	message string
	inputs  protowire.Number
	outputs protowire.Number
}

var (
	workflowDataLayout = dataLayout{message: "WorkflowExecutionGetDataResponse", inputs: 2, outputs: 1}
	taskDataLayout     = dataLayout{message: "TaskExecutionGetDataResponse", inputs: 1, outputs: 2}
	nodeDataLayout     = dataLayout{message: "NodeExecutionGetDataResponse", inputs: 1, outputs: 2}
)

func (d DataResponse) marshal(layout dataLayout) ([]byte, error) {
	var e wire.Encoder

	first, second := d.Outputs, d.Inputs
	firstNum, secondNum := layout.outputs, layout.inputs

	if layout.inputs < layout.outputs {
		first, second = d.Inputs, d.Outputs
		firstNum, secondNum = layout.inputs, layout.outputs
	}

	if err := embed(&e, firstNum, first); err != nil {
		return nil, err
	}

	if err := embed(&e, secondNum, second); err != nil {
		return nil, err
	}

	if err := embed(&e, 3, d.FullInputs); err != nil {
		return nil, err
	}

	if err := embed(&e, 4, d.FullOutputs); err != nil {
		return nil, err
	}

	return e.Bytes(), nil
}

func (d *DataResponse) unmarshal(layout dataLayout, data []byte) error {
	out := DataResponse{FullInputs: NewLiteralMap(nil), FullOutputs: NewLiteralMap(nil)}

	err := decode(layout.message, data, func(f wire.Field) error {
		switch f.Num {
		case layout.inputs:
			return at("inputs", sub(f, &out.Inputs))
		case layout.outputs:
			return at("outputs", sub(f, &out.Outputs))
		case 3:
			return at("full_inputs", sub(f, &out.FullInputs))
		case 4:
			return at("full_outputs", sub(f, &out.FullOutputs))
		}

		return nil
	})
	if err != nil {
		return err
	}

	*d = out

	return nil
}

type WorkflowExecutionGetDataResponse struct {
	DataResponse
}

func (r WorkflowExecutionGetDataResponse) MarshalBinary() ([]byte, error) {
	return r.marshal(workflowDataLayout)
}

func (r *WorkflowExecutionGetDataResponse) UnmarshalBinary(data []byte) error {
	return r.unmarshal(workflowDataLayout, data)
}

type TaskExecutionGetDataResponse struct {
	DataResponse
}

func (r TaskExecutionGetDataResponse) MarshalBinary() ([]byte, error) {
	return r.marshal(taskDataLayout)
}

func (r *TaskExecutionGetDataResponse) UnmarshalBinary(data []byte) error {
	return r.unmarshal(taskDataLayout, data)
}

type NodeExecutionGetDataResponse struct {
	DataResponse
}

func (r NodeExecutionGetDataResponse) MarshalBinary() ([]byte, error) {
	return r.marshal(nodeDataLayout)
}

func (r *NodeExecutionGetDataResponse) UnmarshalBinary(data []byte) error {
	return r.unmarshal(nodeDataLayout, data)
}
