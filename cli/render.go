package cli

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/randalmurphal/socialflow/platform"
	"github.com/randalmurphal/socialflow/workflow"
)

var (
	colorOK    = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	colorWarn  = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	colorBad   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	colorFaint = lipgloss.AdaptiveColor{Light: "#57606A", Dark: "#8B949E"}
)

// styles renders CLI output. Plain styles carry no colors and mark diffs
// with [-deleted-] and {+inserted+}.
type styles struct {
	plain bool

	title lipgloss.Style
	faint lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style
	box   lipgloss.Style
}

func newStyles(noColor bool) styles {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Width(64)
	if noColor {
		return styles{
			plain: true,
			title: lipgloss.NewStyle(),
			faint: lipgloss.NewStyle(),
			ok:    lipgloss.NewStyle(),
			warn:  lipgloss.NewStyle(),
			bad:   lipgloss.NewStyle(),
			box:   box,
		}
	}
	return styles{
		title: lipgloss.NewStyle().Bold(true),
		faint: lipgloss.NewStyle().Foreground(colorFaint),
		ok:    lipgloss.NewStyle().Foreground(colorOK).Bold(true),
		warn:  lipgloss.NewStyle().Foreground(colorWarn).Bold(true),
		bad:   lipgloss.NewStyle().Foreground(colorBad).Bold(true),
		box:   box.BorderForeground(colorFaint),
	}
}

func (s styles) status(st workflow.Status) string {
	switch st {
	case workflow.StatusPublished:
		return s.ok.Render(string(st))
	case workflow.StatusFailed:
		return s.bad.Render(string(st))
	case workflow.StatusPendingApproval:
		return s.warn.Render(string(st))
	}
	return string(st)
}

func (s styles) inserted(text string) string {
	if s.plain {
		return "{+" + text + "+}"
	}
	return s.ok.Underline(true).Render(text)
}

func (s styles) deleted(text string) string {
	if s.plain {
		return "[-" + text + "-]"
	}
	return s.bad.Strikethrough(true).Render(text)
}

// =============================================================================
// Outcomes
// =============================================================================

func renderOutcome(w io.Writer, st styles, o workflow.Outcome) {
	s := o.State
	fmt.Fprintf(w, "%s  %s  %s  %s\n",
		st.title.Render(o.ThreadID),
		st.status(s.Status),
		s.Platform,
		st.faint.Render(fmt.Sprintf("attempt %d/%d", s.AttemptCount, s.MaxAttempts)),
	)
	fmt.Fprintf(w, "%s %s\n", st.faint.Render("topic:"), s.Topic)

	if s.Draft != nil {
		fmt.Fprintln(w, st.box.Render(s.Draft.RenderedText()))
		fmt.Fprintln(w, lengthLine(st, s.Platform, s.Draft.Length()))
	}

	switch {
	case s.Status == workflow.StatusPublished:
		fmt.Fprintf(w, "%s %s\n", st.ok.Render("Published:"), s.PublishedURL)
	case s.Status == workflow.StatusFailed:
		fmt.Fprintf(w, "%s %s\n", st.bad.Render("Failed:"), s.Error)
	case o.Approval != nil:
		fmt.Fprintf(w, "\nReply with: socialflow approve %s [approve | reject | edit: <text>]\n", o.ThreadID)
		if o.Approval.ResumeToken != "" {
			fmt.Fprintf(w, "%s %s\n", st.faint.Render("resume token:"), o.Approval.ResumeToken)
		}
	case s.Error != "":
		fmt.Fprintf(w, "%s %s\n", st.warn.Render("Last error:"), s.Error)
	}
}

func lengthLine(st styles, pl platform.Platform, length int) string {
	pol, err := platform.Lookup(pl)
	if err != nil {
		return st.faint.Render(fmt.Sprintf("%d characters", length))
	}
	line := fmt.Sprintf("%d/%d characters", length, pol.MaxLength)
	if length > pol.MaxLength {
		return st.bad.Render(fmt.Sprintf("%s (%d over the limit)", line, length-pol.MaxLength))
	}
	return st.faint.Render(line)
}

func renderPending(w io.Writer, st styles, outs []workflow.Outcome, now time.Time) {
	if len(outs) == 0 {
		fmt.Fprintln(w, st.faint.Render("No posts waiting for review."))
		return
	}
	const row = "%-22s %-9s %-8s %-10s %s"
	fmt.Fprintln(w, st.title.Render(fmt.Sprintf(row, "THREAD", "PLATFORM", "ATTEMPT", "WAITING", "TOPIC")))
	for _, o := range outs {
		waiting := "-"
		if !o.UpdatedAt.IsZero() {
			waiting = now.Sub(o.UpdatedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, row+"\n",
			o.ThreadID,
			o.State.Platform,
			fmt.Sprintf("%d/%d", o.State.AttemptCount, o.State.MaxAttempts),
			waiting,
			o.State.Topic,
		)
	}
}

// =============================================================================
// Word Diff
// =============================================================================

// wordDiff marks the words that changed between before and after.
func wordDiff(st styles, before, after string) string {
	const sep = "\x00"
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(
		strings.Join(tokenize(before), sep),
		strings.Join(tokenize(after), sep),
		false,
	)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		text := strings.ReplaceAll(d.Text, sep, "")
		if text == "" {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			b.WriteString(text)
		case diffmatchpatch.DiffDelete:
			b.WriteString(st.deleted(text))
		case diffmatchpatch.DiffInsert:
			b.WriteString(st.inserted(text))
		}
	}
	return b.String()
}

// tokenize splits s into runs of whitespace and runs of everything else.
func tokenize(s string) []string {
	var (
		tokens  []string
		current strings.Builder
		inSpace bool
	)
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i > 0 && space != inSpace {
			tokens = append(tokens, current.String())
			current.Reset()
		}
		inSpace = space
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}
