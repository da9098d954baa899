package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/harunnryd/hearth/internal/approval"
	"github.com/harunnryd/hearth/internal/executor"
)

func printOutcome(w io.Writer, out executor.Outcome) {
	if out.Pending == nil {
		fmt.Fprintln(w, strings.TrimSpace(out.Response))
		return
	}
	printPending(w, *out.Pending)
}

func printPending(w io.Writer, p approval.Pending) {
	fmt.Fprintf(w, "Approval needed [%s risk] from %s: %s\n", p.Risk, p.Skill, p.Description)
	for _, d := range p.Details {
		fmt.Fprintf(w, "  - %s\n", d)
	}
	fmt.Fprintf(w, "  id: %s\n", p.ID)

	if p.State == approval.StateDeferred {
		fmt.Fprintf(w, "  held for quiet hours until %s\n", p.DeliverAt.Local().Format("15:04 Mon"))
	}
	if !p.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "  expires %s\n", p.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
}

func printResolution(w io.Writer, r executor.Resolution) {
	fmt.Fprintf(w, "\n[%s] %s %s\n", r.Approval.ID, r.Approval.Skill, r.Approval.Outcome)
	switch {
	case r.Response != "":
		fmt.Fprintln(w, strings.TrimSpace(r.Response))
	case r.Reason != "":
		fmt.Fprintf(w, "failed: %s\n", r.Reason)
	}
}
