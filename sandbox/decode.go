package sandbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

var errEmptyStdout = errors.New("stdout is empty")

// DecodeResult interprets the accumulated stdout as one JSON value.
func DecodeResult(stdout []byte) (RunResult, error) {
	if !utf8.Valid(stdout) {
		return RunResult{}, errors.New("stdout is not valid utf-8")
	}
	if len(bytes.TrimSpace(stdout)) == 0 {
		return RunResult{}, errEmptyStdout
	}

	var value any
	if err := json.Unmarshal(stdout, &value); err != nil {
		return RunResult{}, fmt.Errorf("stdout is not valid json: %w", err)
	}
	return RunResult{Value: value}, nil
}
