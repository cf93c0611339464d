package external

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrFormat = errors.New("malformed metrics report")

const versionPrefix = "external:api="

// Metric is one name=value line of a report.
type Metric struct {
	Name  string
	Value float64
}

// Report is a parsed child stdout. Metrics keep their order of appearance.
type Report struct {
	Version int
	Metrics []Metric
}

type bodyParser func(sc *bufio.Scanner) ([]Metric, error)

var bodyParsers = map[int]bodyParser{
	1: parseV1,
}

// ParseReport decodes stdout. It never returns a partial report.
func ParseReport(stdout []byte) (*Report, error) {
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), len(stdout)+1)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return nil, fmt.Errorf("%w: empty output", ErrFormat)
	}
	version, err := parseVersion(trimCR(sc.Text()))
	if err != nil {
		return nil, err
	}
	parse, ok := bodyParsers[version]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported protocol version %d", ErrFormat, version)
	}
	metrics, err := parse(sc)
	if err != nil {
		return nil, err
	}
	return &Report{Version: version, Metrics: metrics}, nil
}

func parseVersion(line string) (int, error) {
	rest, ok := strings.CutPrefix(line, versionPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: first line %q is not a version line", ErrFormat, truncate(line, 64))
	}
	v, err := strconv.Atoi(rest)
	if err != nil || v <= 0 || strings.HasPrefix(rest, "+") {
		return 0, fmt.Errorf("%w: bad protocol version %q", ErrFormat, truncate(rest, 64))
	}
	return v, nil
}

func parseV1(sc *bufio.Scanner) ([]Metric, error) {
	var out []Metric
	for n := 2; sc.Scan(); n++ {
		line := trimCR(sc.Text())
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: missing '='", ErrFormat, n)
		}
		if name == "" {
			return nil, fmt.Errorf("%w: line %d: empty metric name", ErrFormat, n)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, n, err)
		}
		out = append(out, Metric{Name: name, Value: v})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return out, nil
}

func trimCR(s string) string { return strings.TrimSuffix(s, "\r") }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
