package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/srg/previewsim/internal/invoke"
	"golang.org/x/term"
)

// printer renders results and emissions as text or JSON lines.
// Colors are only used when writing to a terminal.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	format string

	ok    *color.Color
	fail  *color.Color
	label *color.Color
}

func newPrinter(out io.Writer, format string) *printer {
	p := &printer{
		out:    out,
		format: format,
		ok:     color.New(color.FgGreen),
		fail:   color.New(color.FgRed),
		label:  color.New(color.FgCyan),
	}

	colored := isTerminal(out)
	for _, c := range []*color.Color{p.ok, p.fail, p.label} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type resultLine struct {
	API   string `json:"api"`
	Mode  string `json:"mode"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
	Code  int    `json:"code,omitempty"`
}

// Result prints the outcome of one invocation
func (p *printer) Result(api string, mode invoke.ModeKind, value any, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == "json" {
		line := resultLine{API: api, Mode: mode.String(), Value: value}
		if err != nil {
			line.Error = err.Error()
			var biz *invoke.BusinessError
			if errors.As(err, &biz) {
				line.Code = biz.Code
			}
		}
		p.writeJSON(line)
		return
	}

	if err != nil {
		fmt.Fprintf(p.out, "%s [%s] %s %v\n", p.label.Sprint(api), mode, p.fail.Sprint("error:"), err)
		return
	}
	fmt.Fprintf(p.out, "%s [%s] %s %s\n", p.label.Sprint(api), mode, p.ok.Sprint("ok:"), compact(value))
}

type eventLine struct {
	Namespace string    `json:"namespace"`
	Event     string    `json:"event"`
	Seq       int       `json:"seq"`
	At        time.Time `json:"at"`
	Value     any       `json:"value"`
}

// Event prints one emission of a simulated stream
func (p *printer) Event(e emission, seq int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == "json" {
		p.writeJSON(eventLine{Namespace: e.Namespace, Event: e.Event, Seq: seq, At: e.At, Value: e.Value})
		return
	}
	fmt.Fprintf(p.out, "%s #%d: %s\n", p.label.Sprint(e.Namespace+"/"+e.Event), seq, compact(e.Value))
}

type namespaceLine struct {
	Namespace string   `json:"namespace"`
	APIs      []string `json:"apis"`
	Events    []string `json:"events"`
}

// Namespace prints the APIs and events of one namespace
func (p *printer) Namespace(name string, apis, events []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == "json" {
		p.writeJSON(namespaceLine{Namespace: name, APIs: apis, Events: events})
		return
	}
	fmt.Fprintln(p.out, p.label.Sprint(name))
	fmt.Fprintf(p.out, "  apis:   %s\n", strings.Join(apis, ", "))
	fmt.Fprintf(p.out, "  events: %s\n", strings.Join(events, ", "))
}

func (p *printer) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(p.out, "{\"error\":%q}\n", err.Error())
		return
	}
	fmt.Fprintln(p.out, string(data))
}

// compact renders a payload as single-line JSON, falling back to %v
func compact(v any) string {
	if v == nil {
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
