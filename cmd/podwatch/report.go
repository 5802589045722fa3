package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	label  string
	colors text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed, text.Bold}},
}

// report prints sectioned "label: [KIND] detail" lines for check and status.
type report struct {
	out   io.Writer
	color bool
}

func newReport(out io.Writer) *report {
	return &report{out: out, color: isTerminal(out)}
}

func (r *report) section(title string) {
	heading := "== " + strings.TrimSpace(title) + " =="
	r.println(heading, text.Colors{text.FgCyan, text.Bold})
	r.println(strings.Repeat("-", len(heading)), text.Colors{text.FgCyan})
}

func (r *report) status(label string, kind statusKind, detail string) {
	style, ok := statusStyles[kind]
	if !ok {
		style = statusStyles[statusInfo]
	}
	r.println(statusLine(label, style.label, detail), style.colors)
}

func (r *report) info(label, detail string) {
	r.status(label, statusInfo, detail)
}

func (r *report) blank() {
	fmt.Fprintln(r.out)
}

func (r *report) println(line string, colors text.Colors) {
	if r.color {
		line = colors.Sprint(line)
	}
	fmt.Fprintln(r.out, line)
}

func statusLine(label, kind, detail string) string {
	line := fmt.Sprintf("  %-20s [%s]", label+":", kind)
	if detail != "" {
		line += " " + detail
	}
	return line
}

// isTerminal reports whether colored output suits w. NO_COLOR always wins.
func isTerminal(w io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
