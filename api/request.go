package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/johnnyeric/docker-run/daemon"
	"github.com/johnnyeric/docker-run/sandbox"
)

// Request-level error codes
const (
	CodeParse    = "request.parse"
	CodeValidate = "request.validate"
)

var validate = validator.New()

// RunBody is the JSON body of a run request
type RunBody struct {
	Image   string         `json:"image" validate:"required"`
	Limits  RunLimits      `json:"limits"`
	Payload map[string]any `json:"payload" validate:"required"`
}

// MaxExecutionTimeSeconds is the largest accepted maxExecutionTime
const MaxExecutionTimeSeconds = 86400

// RunLimits carries the per-request ceilings. maxExecutionTime is in seconds.
type RunLimits struct {
	MaxExecutionTime uint64 `json:"maxExecutionTime" validate:"min=1,max=86400"`
	MaxOutputSize    int    `json:"maxOutputSize" validate:"min=1"`
}

// ErrorBody is the JSON body returned for every failed request
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ParseRunBody decodes and validates a run request. The returned ErrorBody is
// nil on success.
func ParseRunBody(data []byte) (RunBody, *ErrorBody) {
	var body RunBody
	if err := json.Unmarshal(data, &body); err != nil {
		return RunBody{}, &ErrorBody{
			Error:   CodeParse,
			Message: fmt.Sprintf("Failed to parse json from request: %v", err),
		}
	}

	if err := validate.Struct(&body); err != nil {
		return RunBody{}, &ErrorBody{
			Error:   CodeValidate,
			Message: formatValidationError(err),
		}
	}

	return body, nil
}

// RunRequest turns the body into a sandbox request using the configured
// container defaults.
func (b *RunBody) RunRequest(defaults daemon.Defaults) sandbox.RunRequest {
	return sandbox.RunRequest{
		ContainerConfig: daemon.DefaultContainerConfig(b.Image, defaults),
		Payload:         b.Payload,
		Limits: sandbox.Limits{
			MaxExecutionTime: time.Duration(b.Limits.MaxExecutionTime) * time.Second,
			MaxOutputSize:    b.Limits.MaxOutputSize,
		},
	}
}

// RunErrorBody converts a failed run into its response body
func RunErrorBody(err error) ErrorBody {
	return ErrorBody{Error: sandbox.ErrorCode(err), Message: err.Error()}
}

func formatValidationError(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := jsonFieldPath(e.Namespace())
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("field '%s' is required", field))
		case "min":
			messages = append(messages, fmt.Sprintf("field '%s' must be at least %s", field, e.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("field '%s' must be at most %s", field, e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("field '%s' failed validation '%s'", field, e.Tag()))
		}
	}
	return strings.Join(messages, "; ")
}

// jsonFieldPath maps "RunBody.Limits.MaxOutputSize" to "limits.maxOutputSize"
func jsonFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}
