package models

import (
	"encoding/json"
	"fmt"
)

// OutputType discriminates output records.
type OutputType string

const (
	OutputStream        OutputType = "stream"
	OutputDisplayData   OutputType = "display_data"
	OutputExecuteResult OutputType = "execute_result"
	OutputError         OutputType = "error"
)

// Stream names.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// Output is one record produced by executing a code cell.
type Output struct {
	OutputType OutputType

	// stream
	Name string
	Text MultilineString

	// display_data, execute_result
	Data           MimeBundle
	Metadata       map[string]any
	ExecutionCount *int

	// error
	Ename     string
	Evalue    string
	Traceback []string
}

// StreamOutput returns a stream record.
func StreamOutput(name, text string) Output {
	return Output{OutputType: OutputStream, Name: name, Text: MultilineString(text)}
}

// DisplayOutput returns a display_data record.
func DisplayOutput(data MimeBundle) Output {
	return Output{OutputType: OutputDisplayData, Data: data, Metadata: map[string]any{}}
}

// ErrorOutput returns an error record.
func ErrorOutput(ename, evalue string, traceback []string) Output {
	if traceback == nil {
		traceback = []string{}
	}
	return Output{OutputType: OutputError, Ename: ename, Evalue: evalue, Traceback: traceback}
}

type streamJSON struct {
	OutputType OutputType      `json:"output_type"`
	Name       string          `json:"name"`
	Text       MultilineString `json:"text"`
}

type displayJSON struct {
	OutputType OutputType     `json:"output_type"`
	Data       MimeBundle     `json:"data"`
	Metadata   map[string]any `json:"metadata"`
}

type resultJSON struct {
	OutputType     OutputType     `json:"output_type"`
	Data           MimeBundle     `json:"data"`
	ExecutionCount *int           `json:"execution_count"`
	Metadata       map[string]any `json:"metadata"`
}

type errorJSON struct {
	OutputType OutputType `json:"output_type"`
	Ename      string     `json:"ename"`
	Evalue     string     `json:"evalue"`
	Traceback  []string   `json:"traceback"`
}

// MarshalJSON writes the fields that belong to the output type.
func (o Output) MarshalJSON() ([]byte, error) {
	data := o.Data
	if data == nil {
		data = MimeBundle{}
	}
	md := o.Metadata
	if md == nil {
		md = map[string]any{}
	}
	switch o.OutputType {
	case OutputStream:
		return json.Marshal(streamJSON{OutputType: o.OutputType, Name: o.Name, Text: o.Text})
	case OutputDisplayData:
		return json.Marshal(displayJSON{OutputType: o.OutputType, Data: data, Metadata: md})
	case OutputExecuteResult:
		return json.Marshal(resultJSON{OutputType: o.OutputType, Data: data, ExecutionCount: o.ExecutionCount, Metadata: md})
	case OutputError:
		tb := o.Traceback
		if tb == nil {
			tb = []string{}
		}
		return json.Marshal(errorJSON{OutputType: o.OutputType, Ename: o.Ename, Evalue: o.Evalue, Traceback: tb})
	}
	return nil, fmt.Errorf("models: unknown output type %q", o.OutputType)
}

// UnmarshalJSON reads any v4 output record.
func (o *Output) UnmarshalJSON(b []byte) error {
	var raw struct {
		OutputType     OutputType      `json:"output_type"`
		Name           string          `json:"name"`
		Text           MultilineString `json:"text"`
		Data           MimeBundle      `json:"data"`
		Metadata       map[string]any  `json:"metadata"`
		ExecutionCount *int            `json:"execution_count"`
		Ename          string          `json:"ename"`
		Evalue         string          `json:"evalue"`
		Traceback      []string        `json:"traceback"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("models: decode output: %w", err)
	}
	switch raw.OutputType {
	case OutputStream, OutputDisplayData, OutputExecuteResult, OutputError:
	default:
		return fmt.Errorf("models: unknown output type %q", raw.OutputType)
	}
	*o = Output(raw)
	return nil
}
