package check

import (
	"fmt"
	"io"
	"strings"
)

// Output renders a Collection in the classic plugin format:
//
//	HTTP WARNING - Response time: 2.5s (warn at 1s)(!) | response_time=2.5s;1;3
//
// followed by one detail line per result.
type Output struct {
	Name       string
	Collection Collection
}

// State returns the overall state of the collection.
func (o Output) State() State {
	return o.Collection.State()
}

// ExitCode returns the exit code for the overall state.
func (o Output) ExitCode() int {
	return o.State().ExitCode()
}

// Line returns the first output line including performance data.
func (o Output) Line() string {
	var b strings.Builder
	if o.Name != "" {
		b.WriteString(o.Name)
		b.WriteByte(' ')
	}
	b.WriteString(o.State().String())
	if summary := o.Collection.Summary(); summary != "" {
		b.WriteString(" - ")
		b.WriteString(summary)
	}
	if perf := o.Collection.Perfdata(); perf != "" {
		b.WriteString(" | ")
		b.WriteString(perf)
	}
	return b.String()
}

// Details returns the long output, one result per line.
func (o Output) Details() []string {
	lines := make([]string, 0, o.Collection.Len())
	for _, r := range o.Collection.results {
		if r.Summary == "" {
			continue
		}
		lines = append(lines, r.Summary+r.State.Marker())
	}
	return lines
}

// WriteTo writes the line and, if there is more than one result, the details.
func (o Output) WriteTo(w io.Writer) (int64, error) {
	var written int64
	n, err := fmt.Fprintln(w, o.Line())
	written += int64(n)
	if err != nil {
		return written, err
	}
	if o.Collection.Len() < 2 {
		return written, nil
	}
	for _, line := range o.Details() {
		n, err = fmt.Fprintln(w, line)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
