package verify

import (
	"fmt"
	"strings"
)

// RenderText renders the result as a terminal-friendly summary.
func RenderText(r *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Verification run %s\n", r.RanAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Overall: %s\n\n", strings.ToUpper(string(r.Overall)))

	for _, c := range r.Counts {
		fmt.Fprintf(&b, "counts/%s: %s (legacy %d, destination %d, ratio %.3f)\n",
			c.Table, c.Status, c.Legacy, c.Dest, c.Ratio)
	}

	fmt.Fprintf(&b, "spot checks: %s (%d sampled, %d with issues)\n",
		r.Spot.Status, r.Spot.Sampled, r.Spot.Flawed)
	for _, issue := range r.Spot.Issues {
		fmt.Fprintf(&b, "  - recipe %d [%s]: %s\n", issue.LegacyID, issue.Field, issue.Detail)
	}

	for _, f := range r.Fields {
		kind := "optional"
		if f.Required {
			kind = "required"
		}
		fmt.Fprintf(&b, "fields/%s (%s): %s (%.1f%% populated)\n",
			f.Field, kind, f.Status, f.Rate*100)
	}

	fmt.Fprintf(&b, "artifacts: %s (%d scanned, %d findings)\n",
		r.Artifacts.Status, r.Artifacts.Scanned, len(r.Artifacts.Findings))
	for _, f := range r.Artifacts.Findings {
		fmt.Fprintf(&b, "  - %s/%s: %d artifacts (%s)\n", f.DestID, f.Field, f.Count, f.Severity)
	}

	fmt.Fprintf(&b, "ordering: %s (%d checked, %d issues)\n",
		r.Ordering.Status, r.Ordering.Checked, len(r.Ordering.Issues))
	fmt.Fprintf(&b, "tags: %s (%d checked, %d issues)\n",
		r.Tags.Status, r.Tags.Checked, len(r.Tags.Issues))
	fmt.Fprintf(&b, "ownership: %s (%d checked, %d issues)\n",
		r.Ownership.Status, r.Ownership.Checked, len(r.Ownership.Issues))
	for _, issue := range r.Ownership.Issues {
		if issue.MappingAbsent {
			fmt.Fprintf(&b, "  - recipe %d: no author mapping (stored %s)\n", issue.LegacyID, issue.Actual)
		} else {
			fmt.Fprintf(&b, "  - recipe %d: expected author %s, stored %s\n", issue.LegacyID, issue.Expected, issue.Actual)
		}
	}

	return b.String()
}

// RenderMarkdown renders the result as a markdown report with per-check
// tables, for pasting into the migration runbook.
func RenderMarkdown(r *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Migration verification\n\n")
	fmt.Fprintf(&b, "Run at %s\n\n", r.RanAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "**Overall: %s**\n\n", strings.ToUpper(string(r.Overall)))

	fmt.Fprintf(&b, "## Record counts\n\n")
	fmt.Fprintf(&b, "| Table | Legacy | Destination | Ratio | Status |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|\n")
	for _, c := range r.Counts {
		fmt.Fprintf(&b, "| %s | %d | %d | %.3f | %s |\n", c.Table, c.Legacy, c.Dest, c.Ratio, c.Status)
	}

	fmt.Fprintf(&b, "\n## Spot checks\n\n")
	fmt.Fprintf(&b, "%d sampled, %d with issues, status **%s**.\n", r.Spot.Sampled, r.Spot.Flawed, r.Spot.Status)
	if len(r.Spot.Issues) > 0 {
		fmt.Fprintf(&b, "\n| Legacy id | Field | Detail |\n|---|---|---|\n")
		for _, issue := range r.Spot.Issues {
			fmt.Fprintf(&b, "| %d | %s | %s |\n", issue.LegacyID, issue.Field, issue.Detail)
		}
	}

	fmt.Fprintf(&b, "\n## Field population\n\n")
	fmt.Fprintf(&b, "| Field | Required | Populated | Status |\n|---|---|---|---|\n")
	for _, f := range r.Fields {
		fmt.Fprintf(&b, "| %s | %t | %.1f%% | %s |\n", f.Field, f.Required, f.Rate*100, f.Status)
	}

	fmt.Fprintf(&b, "\n## HTML and encoding artifacts\n\n")
	fmt.Fprintf(&b, "%d recipes scanned, %d findings, status **%s**.\n", r.Artifacts.Scanned, len(r.Artifacts.Findings), r.Artifacts.Status)
	if len(r.Artifacts.Findings) > 0 {
		fmt.Fprintf(&b, "\n| Recipe | Field | Artifacts | Severity | Cleaned sample |\n|---|---|---|---|---|\n")
		for _, f := range r.Artifacts.Findings {
			fmt.Fprintf(&b, "| %s | %s | %d | %s | %s |\n", f.DestID, f.Field, f.Count, f.Severity, f.Sample)
		}
	}

	fmt.Fprintf(&b, "\n## Ordering\n\n")
	fmt.Fprintf(&b, "%d recipes checked, %d issues, status **%s**.\n", r.Ordering.Checked, len(r.Ordering.Issues), r.Ordering.Status)
	if len(r.Ordering.Issues) > 0 {
		fmt.Fprintf(&b, "\n| Legacy id | Kind | Position | Legacy text | Destination text |\n|---|---|---|---|---|\n")
		for _, issue := range r.Ordering.Issues {
			fmt.Fprintf(&b, "| %d | %s | %d | %s | %s |\n", issue.LegacyID, issue.Kind, issue.Position, issue.Legacy, issue.Dest)
		}
	}

	fmt.Fprintf(&b, "\n## Tag associations\n\n")
	fmt.Fprintf(&b, "%d recipes checked, %d issues, status **%s**.\n", r.Tags.Checked, len(r.Tags.Issues), r.Tags.Status)
	if len(r.Tags.Issues) > 0 {
		fmt.Fprintf(&b, "\n| Legacy id | Missing | Extra |\n|---|---|---|\n")
		for _, issue := range r.Tags.Issues {
			fmt.Fprintf(&b, "| %d | %s | %s |\n", issue.LegacyID,
				strings.Join(issue.Missing, ", "), strings.Join(issue.Extra, ", "))
		}
	}

	fmt.Fprintf(&b, "\n## User ownership\n\n")
	fmt.Fprintf(&b, "%d recipes checked, %d issues, status **%s**.\n", r.Ownership.Checked, len(r.Ownership.Issues), r.Ownership.Status)
	if len(r.Ownership.Issues) > 0 {
		fmt.Fprintf(&b, "\n| Legacy id | Expected author | Stored author | Mapping absent |\n|---|---|---|---|\n")
		for _, issue := range r.Ownership.Issues {
			fmt.Fprintf(&b, "| %d | %s | %s | %t |\n", issue.LegacyID, issue.Expected, issue.Actual, issue.MappingAbsent)
		}
	}

	return b.String()
}
