package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Sriram-PR/img-rotator/pkg/config"
	"github.com/Sriram-PR/img-rotator/pkg/stats"
	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

var columns = []string{"site", "available", "attempted", "processed", "failed-to-fetch", "failed-to-rotate", "failed-to-store", "skipped"}

func row(name string, c stats.Counts) []string {
	return []string{
		name,
		fmt.Sprint(c.Available),
		fmt.Sprint(c.Attempted),
		fmt.Sprint(c.Processed),
		fmt.Sprint(c.FailedFetch),
		fmt.Sprint(c.FailedRotate),
		fmt.Sprint(c.FailedStore),
		fmt.Sprint(c.Skipped),
	}
}

// Suggestion returns advice when the run fell short of its quota, empty otherwise
func Suggestion(snap stats.Snapshot) string {
	if snap.Total.Processed >= snap.Quota {
		return ""
	}
	var weak []string
	for _, s := range snap.Sites {
		if s.Available == 0 || (s.Attempted > 0 && s.Processed == 0) {
			weak = append(weak, s.Site)
		}
	}
	msg := fmt.Sprintf("Only %d of %d images were processed. Add more sites to the site list", snap.Total.Processed, snap.Quota)
	if len(weak) > 0 {
		msg += " or replace sites that yielded no usable images: " + strings.Join(weak, ", ")
	}
	return msg + "."
}

// Write renders snap in the given format
func Write(w io.Writer, format string, snap stats.Snapshot) error {
	var err error
	switch format {
	case config.ReportFormatText, "":
		err = writeText(w, snap)
	case config.ReportFormatMarkdown:
		_, err = io.WriteString(w, Markdown(snap))
	case config.ReportFormatHTML:
		err = writeHTML(w, snap)
	default:
		return fmt.Errorf("%w: unknown report format '%s'", utils.ErrConfigValidation, format)
	}
	if err != nil {
		return fmt.Errorf("%w: writing report: %w", utils.ErrFilesystem, err)
	}
	return nil
}

func writeText(w io.Writer, snap stats.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, s := range snap.Sites {
		fmt.Fprintln(tw, strings.Join(row(s.Site, s.Counts), "\t"))
	}
	fmt.Fprintln(tw, strings.Join(row("TOTAL", snap.Total), "\t"))
	if err := tw.Flush(); err != nil {
		return err
	}
	if s := Suggestion(snap); s != "" {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	return nil
}

// Markdown renders snap as a GitHub flavoured table
func Markdown(snap stats.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run report\n\nQuota: %d, processed: %d\n\n", snap.Quota, snap.Total.Processed)
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")
	for _, s := range snap.Sites {
		b.WriteString("| " + strings.Join(row(mdEscape(s.Site), s.Counts), " | ") + " |\n")
	}
	b.WriteString("| " + strings.Join(row("**total**", snap.Total), " | ") + " |\n")
	if s := Suggestion(snap); s != "" {
		b.WriteString("\n> " + mdEscape(s) + "\n")
	}
	return b.String()
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func writeHTML(w io.Writer, snap stats.Snapshot) error {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(snap)), &body); err != nil {
		return fmt.Errorf("%w: rendering markdown: %w", utils.ErrParsing, err)
	}
	if _, err := io.WriteString(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>img-rotator report</title></head><body>\n"); err != nil {
		return err
	}
	if _, err := body.WriteTo(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</body></html>\n")
	return err
}
