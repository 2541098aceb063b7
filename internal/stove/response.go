package stove

import (
	"strconv"
	"strings"
)

// Response is the parsed form of one CGI reply.
type Response struct {
	Op        int
	StatusOK  bool
	ErrorCode *int // nil when the body carried no recognizable code
	Params    map[string]string
	Lines     []string
	Raw       string
}

// Keys checked for a numeric result code, in priority order. The firmware
// has gone through several naming revisions; all of them are accepted.
var errorCodeKeys = []string{"error", "err", "codigo", "code", "resultado", "result"}

// Parse turns a raw CGI body into a Response. It is a pure function: the
// body is split into non-empty trimmed lines, lines containing '=' become
// key/value pairs (last write wins on duplicates), and an integer error code
// is inferred first from the known keys, then from the first bare-integer
// line. A body without any code is treated as success, but ErrorCode stays
// nil so callers can tell "unknown" from "reported 0".
func Parse(op int, raw string) Response {
	var lines []string
	for _, ln := range strings.Split(raw, "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			lines = append(lines, ln)
		}
	}

	params := make(map[string]string)
	for _, ln := range lines {
		if !strings.Contains(ln, "=") {
			continue
		}
		k, v, _ := strings.Cut(ln, "=")
		k = strings.TrimSpace(k)
		if k != "" {
			params[k] = strings.TrimSpace(v)
		}
	}

	var errorCode *int
	for _, key := range errorCodeKeys {
		v, ok := params[key]
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil {
			errorCode = &n
			break
		}
		// non-numeric values for an earlier key are skipped, not fatal
	}

	if errorCode == nil {
		for _, ln := range lines {
			if isBareInteger(ln) {
				n, _ := strconv.Atoi(ln)
				errorCode = &n
				break
			}
		}
	}

	statusOK := errorCode == nil || *errorCode == 0

	return Response{
		Op:        op,
		StatusOK:  statusOK,
		ErrorCode: errorCode,
		Params:    params,
		Lines:     lines,
		Raw:       raw,
	}
}

// isBareInteger reports whether s is a plain, optionally negative integer.
func isBareInteger(s string) bool {
	digits := s
	if strings.HasPrefix(s, "-") {
		digits = s[1:]
	}
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
