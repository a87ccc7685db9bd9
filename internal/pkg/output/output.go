// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package output renders command results as a table, YAML or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"lvm-access/internal/pkg/config"
)

// Tabular is implemented by values that can be shown as a table.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// Printer writes values in one format.
type Printer struct {
	w      io.Writer
	format string
}

// New returns a printer for format, which is one of the config output
// formats.
func New(w io.Writer, format string) (*Printer, error) {
	switch format {
	case config.OutputTable, config.OutputYAML, config.OutputJSON:
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	return &Printer{w: w, format: format}, nil
}

// Print writes v. Values that are not Tabular fall back to YAML in table
// format.
func (p *Printer) Print(v any) error {
	switch p.format {
	case config.OutputJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputTable:
		if t, ok := v.(Tabular); ok {
			return p.table(t)
		}
	}
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (p *Printer) table(t Tabular) error {
	w := tabwriter.NewWriter(p.w, 0, 0, 3, ' ', 0)
	if _, err := fmt.Fprintln(w, strings.Join(t.Header(), "\t")); err != nil {
		return err
	}
	for _, row := range t.Rows() {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

// List is a single-column table of strings.
type List struct {
	Title string
	Items []string
}

func (l List) Header() []string { return []string{strings.ToUpper(l.Title)} }

func (l List) Rows() [][]string {
	rows := make([][]string, 0, len(l.Items))
	for _, item := range l.Items {
		rows = append(rows, []string{item})
	}
	return rows
}

func (l List) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.items())
}

func (l List) MarshalYAML() (any, error) {
	return l.items(), nil
}

func (l List) items() []string {
	if l.Items == nil {
		return []string{}
	}
	return l.Items
}
