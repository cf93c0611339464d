package external

import (
	"github.com/signalnine/extmetrics/internal/options"
)

// Published error codes. 3 was the exec_error slot and is never published;
// exec failures surface as the child's exit status instead.
const (
	CodeSuccess     int32 = 0
	CodePipeError   int32 = 1
	CodeSpawnError  int32 = 2
	CodeFormatError int32 = 4
)

const (
	KeyErrorCode     = "external:error_code"
	KeyReturnCode    = "external:return_code"
	KeyStderr        = "external:stderr"
	KeySignal        = "external:signal"
	KeyResultsPrefix = "external:results:"
)

// UnsetResults declares the always-present keys without values.
func UnsetResults() *options.Options {
	r := options.New()
	r.SetType(KeyErrorCode, options.Int32)
	r.SetType(KeyReturnCode, options.Int32)
	r.SetType(KeyStderr, options.String)
	return r
}

// Sentinel is the fixed result published when stdout cannot be parsed.
func Sentinel() *options.Options {
	r := options.New()
	r.SetInt32(KeyErrorCode, CodeFormatError)
	r.SetInt32(KeyReturnCode, 0)
	r.SetString(KeyStderr, "")
	return r
}

// Results maps an outcome to the published result set. In strict mode a
// format error keeps the real return code, stderr and signal instead of the
// sentinel's zero values.
func Results(o *Outcome, strict bool) *options.Options {
	switch o.Err {
	case PipeCreationFailed:
		return invocationFailure(CodePipeError, o)
	case SpawnFailed:
		return invocationFailure(CodeSpawnError, o)
	}

	rep, err := ParseReport(o.Stdout)
	if err != nil {
		if !strict {
			return Sentinel()
		}
		r := processResults(o)
		r.SetInt32(KeyErrorCode, CodeFormatError)
		return r
	}

	r := processResults(o)
	r.SetInt32(KeyErrorCode, CodeSuccess)
	for _, m := range rep.Metrics {
		r.SetDouble(KeyResultsPrefix+m.Name, m.Value)
	}
	return r
}

func processResults(o *Outcome) *options.Options {
	r := options.New()
	r.SetString(KeyStderr, string(o.Stderr))
	if o.Exited {
		r.SetInt32(KeyReturnCode, int32(o.ExitCode))
	} else {
		r.SetInt32(KeyReturnCode, -1)
	}
	if o.Signal != "" {
		r.SetString(KeySignal, o.Signal)
	}
	return r
}

func invocationFailure(code int32, o *Outcome) *options.Options {
	r := options.New()
	r.SetInt32(KeyErrorCode, code)
	r.SetInt32(KeyReturnCode, -1)
	msg := ""
	if o.Cause != nil {
		msg = o.Cause.Error()
	}
	r.SetString(KeyStderr, msg)
	return r
}
