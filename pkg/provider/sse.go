// pkg/provider/sse.go

package provider

import (
	"bufio"
	"bytes"
	"context"
	"io"

	cerr "github.com/cockroachdb/errors"
)

// maxSSELine bounds a single event line. Provider deltas are small; 1 MiB
// leaves generous headroom for tool-call argument chunks.
const maxSSELine = 1 << 20

var errSSEStop = cerr.New("sse: stop")

// scanSSE reads a text/event-stream body and invokes fn once per data
// payload. Comment lines and event/id/retry fields are skipped; multi-line
// data fields are joined with newlines per the SSE spec. fn may return
// errSSEStop to end the scan cleanly.
func scanSSE(ctx context.Context, r io.Reader, fn func(data []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxSSELine)

	var data [][]byte
	flush := func() error {
		if len(data) == 0 {
			return nil
		}
		payload := bytes.Join(data, []byte("\n"))
		data = data[:0]
		return fn(payload)
	}

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Bytes()
		switch {
		case len(line) == 0:
			if err := flush(); err != nil {
				if cerr.Is(err, errSSEStop) {
					return nil
				}
				return err
			}
		case line[0] == ':':
			// comment, keep-alive
		case bytes.HasPrefix(line, []byte("data:")):
			d := bytes.TrimPrefix(line, []byte("data:"))
			d = bytes.TrimPrefix(d, []byte(" "))
			data = append(data, append([]byte(nil), d...))
		default:
			// event:/id:/retry: fields are irrelevant to the JSON payloads
			// the chat APIs stream.
		}
	}
	if err := sc.Err(); err != nil {
		return cerr.Wrap(err, "read event stream")
	}
	if err := flush(); err != nil && !cerr.Is(err, errSSEStop) {
		return err
	}
	return nil
}
