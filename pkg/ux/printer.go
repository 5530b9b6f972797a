// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

// ErrUnknownMode is returned by ParseMode for an unrecognised name.
var ErrUnknownMode = errors.New("unknown output mode")

// Mode selects between styled and script-friendly output.
type Mode string

const (
	// ModeAuto picks rich output for terminals and plain output otherwise.
	ModeAuto Mode = "auto"

	// ModeRich uses colors, icons and bordered tables.
	ModeRich Mode = "rich"

	// ModePlain writes tab-separated text with no escape codes.
	ModePlain Mode = "plain"
)

// ParseMode converts a flag value to a Mode. Empty is auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeRich:
		return ModeRich, nil
	case ModePlain, "machine":
		return ModePlain, nil
	default:
		return ModeAuto, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// DetectMode resolves ModeAuto for w. Writers that are not terminal files,
// and any writer when NO_COLOR is set, get ModePlain.
func DetectMode(w io.Writer) Mode {
	if os.Getenv("NO_COLOR") != "" {
		return ModePlain
	}
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return ModePlain
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return ModeRich
	}
	return ModePlain
}

// Printer writes CLI output in one Mode.
//
// Thread Safety: Safe for concurrent use; each call writes atomically.
type Printer struct {
	out  io.Writer
	errw io.Writer
	mode Mode
	mu   sync.Mutex
}

// NewPrinter creates a Printer. ModeAuto is resolved against out.
// A nil errw sends warnings and errors to out.
func NewPrinter(out, errw io.Writer, mode Mode) *Printer {
	if mode == ModeAuto || mode == "" {
		mode = DetectMode(out)
	}
	if errw == nil {
		errw = out
	}
	return &Printer{out: out, errw: errw, mode: mode}
}

// Mode returns the resolved mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

// Rich reports whether styled output is in use.
func (p *Printer) Rich() bool {
	return p.mode == ModeRich
}

func (p *Printer) write(w io.Writer, s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(w, s)
}

// Title prints a heading. Plain mode omits it.
func (p *Printer) Title(text string) {
	if !p.Rich() {
		return
	}
	p.write(p.out, Styles.Title.Render(text)+"\n")
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if !p.Rich() {
		p.write(p.out, "OK: "+msg+"\n")
		return
	}
	p.write(p.out, IconSuccess.render()+" "+Styles.Success.Render(msg)+"\n")
}

// Warning prints a warning line to the error writer.
func (p *Printer) Warning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if !p.Rich() {
		p.write(p.errw, "WARN: "+msg+"\n")
		return
	}
	p.write(p.errw, IconWarning.render()+" "+Styles.Warning.Render(msg)+"\n")
}

// Error prints an error line to the error writer.
func (p *Printer) Error(err error) {
	if err == nil {
		return
	}
	if !p.Rich() {
		p.write(p.errw, "ERROR: "+err.Error()+"\n")
		return
	}
	p.write(p.errw, IconError.render()+" "+Styles.Error.Render(err.Error())+"\n")
}

// Value prints a labelled number, e.g. the result of a resolution.
func (p *Printer) Value(label string, v float64, note string) {
	num := formatFloat(v)
	if !p.Rich() {
		if note != "" {
			p.write(p.out, fmt.Sprintf("%s\t%s\t%s\n", label, num, note))
		} else {
			p.write(p.out, fmt.Sprintf("%s\t%s\n", label, num))
		}
		return
	}
	line := fmt.Sprintf("%s %s %s", Styles.Bold.Render(label), IconArrow.render(), Styles.Value.Render(num))
	if note != "" {
		line += " " + Styles.Muted.Render("("+note+")")
	}
	p.write(p.out, line+"\n")
}

// KeyValues prints aligned key/value pairs. pairs alternates key, value.
func (p *Printer) KeyValues(title string, pairs ...string) {
	width := 0
	for i := 0; i+1 < len(pairs); i += 2 {
		width = max(width, len(pairs[i]))
	}

	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if p.Rich() {
			fmt.Fprintf(&b, "%s  %s\n", Styles.Muted.Render(fmt.Sprintf("%-*s", width, pairs[i])), pairs[i+1])
		} else {
			fmt.Fprintf(&b, "%s\t%s\n", pairs[i], pairs[i+1])
		}
	}

	if !p.Rich() {
		p.write(p.out, b.String())
		return
	}
	body := strings.TrimRight(b.String(), "\n")
	if title != "" {
		body = Styles.Title.Render(title) + "\n" + body
	}
	p.write(p.out, Styles.Box.Render(body)+"\n")
}

// Table prints rows under headers. Plain mode writes a tab-separated header
// line followed by one line per row.
func (p *Printer) Table(headers []string, rows [][]string) {
	if !p.Rich() {
		var b strings.Builder
		b.WriteString(strings.Join(headers, "\t"))
		b.WriteByte('\n')
		for _, r := range rows {
			b.WriteString(strings.Join(r, "\t"))
			b.WriteByte('\n')
		}
		p.write(p.out, b.String())
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return Styles.Header
			}
			return Styles.Cell
		})
	p.write(p.out, t.String()+"\n")
}

// formatFloat prints integers without a fraction and everything else with
// up to four decimals.
func formatFloat(v float64) string {
	if math.Trunc(v) == v && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
