package provider

import (
	"bufio"
	"io"
	"strings"
)

// SSEScanner reads "data: " payloads from a vendor event stream. Event names
// and comment lines are skipped; callers only see the data payloads.
type SSEScanner struct {
	scanner *bufio.Scanner
}

// NewSSEScanner wraps a vendor response body. The buffer tolerates large
// single-line payloads such as full tool-call argument chunks.
func NewSSEScanner(r io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &SSEScanner{scanner: scanner}
}

// Next returns the next data payload, or io.EOF when the stream ends.
func (s *SSEScanner) Next() (string, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}
		return payload, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
