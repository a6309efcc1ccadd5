// Package printers renders command results as colored tables, JSON or YAML.
package printers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v3"

	"tableflip.dev/cachemap/pkg/remote"
	"tableflip.dev/cachemap/pkg/settings"
)

// Format selects the output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Printer writes results to Out.
type Printer struct {
	Out    io.Writer
	Format Format
}

// New returns a printer on the color-aware stdout.
func New(format Format) *Printer {
	if format == "" {
		format = FormatTable
	}
	return &Printer{Out: color.Output, Format: format}
}

// AssetRow is one listed asset with its tags.
type AssetRow struct {
	Asset    string   `json:"asset" yaml:"asset"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Selected bool     `json:"selected,omitempty" yaml:"selected,omitempty"`
}

func (p *Printer) structured(v any) (bool, error) {
	switch p.Format {
	case FormatJSON:
		enc := json.NewEncoder(p.Out)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(p.Out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func (p *Printer) titleWithCount(title string, count int, noun string) {
	t := color.New(color.Bold, color.Underline)
	c := color.New(color.Faint)
	_, _ = t.Fprint(p.Out, title)
	_, _ = c.Fprintf(p.Out, " - %d %s", count, noun)
	if count != 1 {
		_, _ = c.Fprint(p.Out, "s")
	}
	_, _ = fmt.Fprintln(p.Out)
}

func (p *Printer) none() {
	f := color.New(color.Faint, color.Italic)
	_, _ = f.Fprint(p.Out, " none\n\n")
}

// Assets prints a listing.
func (p *Printer) Assets(title string, rows []AssetRow) error {
	if ok, err := p.structured(rows); ok {
		return err
	}
	p.titleWithCount(title, len(rows), "asset")
	if len(rows) == 0 {
		p.none()
		return nil
	}
	mark := color.New(color.FgHiGreen, color.Bold)
	faint := color.New(color.FgHiYellow, color.Faint)
	tbl := uitable.New()
	tbl.Separator = "  "
	for _, r := range rows {
		sel := " "
		if r.Selected {
			sel = mark.Sprint("*")
		}
		tbl.AddRow(sel, r.Asset, faint.Sprint(strings.Join(r.Tags, ", ")))
	}
	_, _ = fmt.Fprintln(p.Out, tbl)
	_, _ = fmt.Fprintln(p.Out)
	return nil
}

// TagIndex prints tag counts.
func (p *Printer) TagIndex(counts []remote.TagCount) error {
	if ok, err := p.structured(counts); ok {
		return err
	}
	p.titleWithCount("Tags", len(counts), "tag")
	if len(counts) == 0 {
		p.none()
		return nil
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	for _, c := range counts {
		tbl.AddRow(fmt.Sprintf("%d", c.Count), c.Name)
	}
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(p.Out, tbl)
	_, _ = fmt.Fprintln(p.Out)
	return nil
}

// Tags prints one asset's tags.
func (p *Printer) Tags(basename string, list []string) error {
	if ok, err := p.structured(map[string]any{"basename": basename, "tags": list}); ok {
		return err
	}
	p.titleWithCount(basename, len(list), "tag")
	if len(list) == 0 {
		p.none()
		return nil
	}
	for _, t := range list {
		_, _ = fmt.Fprintf(p.Out, "  %s\n", t)
	}
	_, _ = fmt.Fprintln(p.Out)
	return nil
}

// Raw prints a backend-defined JSON document.
func (p *Printer) Raw(raw json.RawMessage) error {
	var v any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("printers: decode: %w", err)
		}
	}
	if ok, err := p.structured(v); ok {
		return err
	}
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Settings prints every preference.
func (p *Printer) Settings(s settings.Settings) error {
	if ok, err := p.structured(s); ok {
		return err
	}
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	for _, k := range settings.Keys() {
		v, _ := s.Get(k)
		tbl.AddRow(bold.Sprint(k), v)
	}
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(p.Out, tbl)
	return nil
}

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version  string `json:"version" yaml:"version"`
	Commit   string `json:"commit" yaml:"commit"`
	Date     string `json:"date" yaml:"date"`
	Go       string `json:"go" yaml:"go"`
	Platform string `json:"platform" yaml:"platform"`
}

// Build prints the binary's version details.
func (p *Printer) Build(b BuildInfo) error {
	if ok, err := p.structured(b); ok {
		return err
	}
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("version"), b.Version)
	tbl.AddRow(bold.Sprint("commit"), b.Commit)
	tbl.AddRow(bold.Sprint("built"), b.Date)
	tbl.AddRow(bold.Sprint("go"), b.Go)
	tbl.AddRow(bold.Sprint("platform"), b.Platform)
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(p.Out, tbl)
	return nil
}

// Value prints a single key.
func (p *Printer) Value(key, value string) error {
	if ok, err := p.structured(map[string]string{key: value}); ok {
		return err
	}
	_, _ = fmt.Fprintln(p.Out, value)
	return nil
}

// Deleted prints a deletion result.
func (p *Printer) Deleted(basename string, res remote.DeleteResult) error {
	if ok, err := p.structured(res); ok {
		return err
	}
	p.titleWithCount("Deleted "+basename, len(res.Deleted), "file")
	for _, d := range res.Deleted {
		_, _ = color.New(color.FgRed).Fprintf(p.Out, "  - %s\n", d)
	}
	_, _ = fmt.Fprintln(p.Out)
	return nil
}

// Event prints one watch line.
func (p *Printer) Event(at time.Time, source, description string) {
	if ok, _ := p.structured(map[string]string{
		"time":   at.Format(time.RFC3339Nano),
		"source": source,
		"event":  description,
	}); ok {
		return
	}
	faint := color.New(color.Faint)
	src := color.New(color.FgCyan)
	_, _ = faint.Fprint(p.Out, at.Format("15:04:05.000"), " ")
	_, _ = src.Fprintf(p.Out, "%-8s", source)
	_, _ = fmt.Fprintln(p.Out, description)
}
