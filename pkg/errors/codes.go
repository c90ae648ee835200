package errors

import (
	"fmt"
	"strconv"
)

// Validation codes.
const (
	// ErrShapeMismatch indicates the selected attention slice and the token
	// sequence disagree on length.
	ErrShapeMismatch = "SHAPE_MISMATCH"

	// ErrIndexFailed indicates an index or slice bound was outside the data.
	// The runtime failure is kept as the cause.
	ErrIndexFailed = "INDEX_FAILED"

	// ErrAttentionEmpty indicates the attention tensor has no layers.
	ErrAttentionEmpty = "ATTENTION_EMPTY"

	// ErrAttentionBatch indicates a batched tensor whose batch size is not 1.
	ErrAttentionBatch = "ATTENTION_BATCH"

	// ErrPayloadEncode indicates the widget payload could not be encoded,
	// usually because the tensor holds NaN or Inf.
	ErrPayloadEncode = "PAYLOAD_ENCODE_FAILED"
)

// IO codes.
const (
	ErrInputReadFailed   = "INPUT_READ_FAILED"
	ErrInputParseFailed  = "INPUT_PARSE_FAILED"
	ErrOutputWriteFailed = "OUTPUT_WRITE_FAILED"

	// ErrDisplayFailed indicates a display surface rejected an output.
	ErrDisplayFailed = "DISPLAY_FAILED"
)

// Config codes.
const (
	ErrConfigReadFailed  = "CONFIG_READ_FAILED"
	ErrConfigParseFailed = "CONFIG_PARSE_FAILED"
	ErrConfigWriteFailed = "CONFIG_WRITE_FAILED"
	ErrConfigInvalid     = "CONFIG_INVALID"
)

// Command codes.
const (
	ErrCommandNotFound    = "COMMAND_NOT_FOUND"
	ErrCommandMissingArgs = "COMMAND_MISSING_ARGS"
	ErrCommandInvalidArg  = "COMMAND_INVALID_ARG"
	ErrCommandNoInput     = "COMMAND_NO_INPUT"
)

// ShapeMismatch reports an attention slice of length got against want tokens.
func ShapeMismatch(got, want int) *Error {
	return Newf(ErrShapeMismatch, CategoryValidation,
		"Attention has %d positions, while number of tokens is %d", got, want).
		WithContext("attention_positions", strconv.Itoa(got)).
		WithContext("token_count", strconv.Itoa(want)).
		WithSuggestion("Pass the token list the attention tensor was computed from")
}

// IndexFailed wraps a runtime index failure raised while reading the tensor.
func IndexFailed(cause error) *Error {
	return Wrap(cause, ErrIndexFailed, CategoryValidation, "attention index out of range")
}

// AttentionEmpty reports an empty attention tensor.
func AttentionEmpty() *Error {
	return New(ErrAttentionEmpty, CategoryValidation, "attention tensor is empty")
}

// AttentionBatch reports an unsupported batch size.
func AttentionBatch(layer, size int) *Error {
	return Newf(ErrAttentionBatch, CategoryValidation, "layer %d has batch size %d, expected 1", layer, size).
		WithSuggestion("Run the model on a single input before visualising")
}

// PayloadEncode wraps a JSON encoding failure of the widget payload.
func PayloadEncode(cause error) *Error {
	return Wrap(cause, ErrPayloadEncode, CategoryValidation, "widget payload is not serializable").
		WithSuggestion("Check the attention tensor for NaN or Inf values")
}

// InputRead wraps a failure to read an input document.
func InputRead(path string, cause error) *Error {
	return Wrap(cause, ErrInputReadFailed, CategoryIO, "failed to read input").
		WithContext("path", path)
}

// InputParse wraps a failure to decode an input document.
func InputParse(path string, cause error) *Error {
	return Wrap(cause, ErrInputParseFailed, CategoryIO, "failed to parse input").
		WithContext("path", path)
}

// OutputWrite wraps a failure to write an output file.
func OutputWrite(path string, cause error) *Error {
	return Wrap(cause, ErrOutputWriteFailed, CategoryIO, "failed to write output").
		WithContext("path", path)
}

// DisplayFailed wraps an error returned by a display surface.
func DisplayFailed(kind string, cause error) *Error {
	return Wrap(cause, ErrDisplayFailed, CategoryIO, fmt.Sprintf("display rejected %s output", kind))
}

// CommandNotFound reports an unknown shell command.
func CommandNotFound(cmd string) *Error {
	return Newf(ErrCommandNotFound, CategoryCommand, "unknown command: %s", cmd).
		WithSuggestion("Type /help to list commands")
}

// CommandMissingArgs reports a command invoked without required arguments.
func CommandMissingArgs(cmd, usage string) *Error {
	return Newf(ErrCommandMissingArgs, CategoryCommand, "%s needs arguments", cmd).
		WithContext("usage", usage)
}

// CommandInvalidArg reports an argument that failed to parse.
func CommandInvalidArg(arg, expected string) *Error {
	return Newf(ErrCommandInvalidArg, CategoryCommand, "invalid argument %q", arg).
		WithContext("expected", expected)
}
