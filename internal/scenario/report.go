package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/vmihailenco/msgpack/v5"
)

// Formats lists the names accepted by NewReporter.
var Formats = []string{"text", "json", "msgpack"}

// NewReporter returns a reporter writing to w in the named format. Colors
// only apply to the text format.
func NewReporter(format string, w io.Writer, colors bool) (Reporter, error) {
	switch format {
	case "text":
		return NewTextReporter(w, colors), nil
	case "json":
		return &JSONReporter{enc: json.NewEncoder(w)}, nil
	case "msgpack":
		return &MsgpackReporter{enc: msgpack.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("unsupported report format %q (want one of %v)", format, Formats)
	}
}

// TextReporter prints one line per event, grouped by tick.
type TextReporter struct {
	w      io.Writer
	header *color.Color
	thread *color.Color
	kinds  map[string]*color.Color
	plain  *color.Color
}

// NewTextReporter creates a TextReporter. When colors is false, the output
// contains no escape sequences regardless of the terminal.
func NewTextReporter(w io.Writer, colors bool) *TextReporter {
	r := &TextReporter{
		w:      w,
		header: color.New(color.Bold),
		thread: color.New(color.FgCyan),
		plain:  color.New(color.Reset),
		kinds: map[string]*color.Color{
			"log":        color.New(color.FgWhite),
			"call":       color.New(color.FgBlue),
			"spawn":      color.New(color.FgMagenta),
			"background": color.New(color.FgYellow),
			"done":       color.New(color.FgGreen, color.Bold),
			"fault":      color.New(color.FgRed, color.Bold),
		},
	}
	for _, c := range r.colors() {
		if colors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

func (r *TextReporter) colors() []*color.Color {
	colors := []*color.Color{r.header, r.thread, r.plain}
	for _, c := range r.kinds {
		colors = append(colors, c)
	}
	return colors
}

func (r *TextReporter) Start(info RunInfo) error {
	_, err := r.header.Fprintf(r.w, "run %s (%s)\n", info.Scenario, info.ID)
	return err
}

func (r *TextReporter) Report(tick TickReport) error {
	for _, e := range tick.Events {
		kind, ok := r.kinds[e.Kind]
		if !ok {
			kind = r.plain
		}
		line := fmt.Sprintf("%5d  %s  %s",
			tick.Tick,
			r.thread.Sprintf("%-12s", e.Thread),
			kind.Sprintf("%-10s", e.Kind))
		if e.Message != "" {
			line += "  " + e.Message
		}
		if _, err := fmt.Fprintln(r.w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

// JSONReporter writes the run info followed by one JSON document per tick.
type JSONReporter struct {
	enc *json.Encoder
}

func (r *JSONReporter) Start(info RunInfo) error { return r.enc.Encode(info) }
func (r *JSONReporter) Report(tick TickReport) error { return r.enc.Encode(tick) }

// MsgpackReporter writes the run info followed by one msgpack value per tick.
type MsgpackReporter struct {
	enc *msgpack.Encoder
}

func (r *MsgpackReporter) Start(info RunInfo) error { return r.enc.Encode(&info) }
func (r *MsgpackReporter) Report(tick TickReport) error { return r.enc.Encode(&tick) }
