package external

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/signalnine/extmetrics/internal/data"
)

// ProtocolVersion is the --api value passed to the child.
const ProtocolVersion = 1

var ErrUnmappedType = errors.New("element type has no command line token")

var typeTokens = map[data.DType]string{
	data.Int8:   "int8",
	data.Int16:  "int16",
	data.Int32:  "int32",
	data.Int64:  "int64",
	data.Uint8:  "uint8",
	data.Uint16: "uint16",
	data.Uint32: "uint32",
	data.Uint64: "uint64",
	data.Float:  "float",
	data.Double: "double",
	data.Byte:   "byte",
}

// TypeToken returns the --type value for t.
func TypeToken(t data.DType) (string, error) {
	tok, ok := typeTokens[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnmappedType, t)
	}
	return tok, nil
}

// ParseTypeToken is the inverse of TypeToken.
func ParseTypeToken(tok string) (data.DType, error) {
	for t, s := range typeTokens {
		if s == tok {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnmappedType, tok)
}

// BuildCommand renders the argument vector for one invocation:
//
//	<template...> --api <version> --input <path> --decompressed <path> --type <token> [--dim <n>]...
//
// The template is split on whitespace only; no shell ever sees it.
func BuildCommand(template string, version int, inputPath, decompressedPath string, buf *data.Buffer) ([]string, error) {
	argv := strings.Fields(template)
	if len(argv) == 0 {
		return nil, errors.New("empty command template")
	}
	tok, err := TypeToken(buf.DType())
	if err != nil {
		return nil, err
	}
	argv = append(argv,
		"--api", strconv.Itoa(version),
		"--input", inputPath,
		"--decompressed", decompressedPath,
		"--type", tok,
	)
	for _, d := range buf.Dims() {
		argv = append(argv, "--dim", strconv.FormatUint(d, 10))
	}
	return argv, nil
}
