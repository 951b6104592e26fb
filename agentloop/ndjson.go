package agentloop

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteNDJSON writes each event from events as one JSON line to w until the
// channel closes. On a write error it returns immediately; the caller should
// cancel the run so the producer stops.
func WriteNDJSON(w io.Writer, events <-chan Event) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("write %s event: %w", ev.Type, err)
		}
	}
	return nil
}
