package utils

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// SSEEvent is one server-sent event: the optional event name and the joined
// data lines.
type SSEEvent struct {
	Event string
	Data  string
}

// StreamSSE reads server-sent events from body until EOF or context
// cancellation. It owns closing the body and always closes the returned
// channel.
func StreamSSE(ctx context.Context, body io.ReadCloser) <-chan SSEEvent {
	ch := make(chan SSEEvent)
	go func() {
		defer close(ch)
		defer body.Close()

		reader := bufio.NewReader(body)
		var eventName string
		var data strings.Builder

		flush := func() {
			if data.Len() == 0 {
				return
			}
			select {
			case ch <- SSEEvent{Event: eventName, Data: strings.TrimSpace(data.String())}:
			case <-ctx.Done():
			}
			eventName = ""
			data.Reset()
		}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line, err := reader.ReadString('\n')
			line = strings.TrimRight(line, "\r\n")

			switch {
			case line == "":
				flush()
			case strings.HasPrefix(line, "event:"):
				eventName = strings.TrimSpace(line[len("event:"):])
			case strings.HasPrefix(line, "data:"):
				data.WriteString(strings.TrimSpace(line[len("data:"):]))
				data.WriteRune('\n')
			}

			if err != nil {
				if err == io.EOF {
					flush()
				}
				return
			}
		}
	}()
	return ch
}
