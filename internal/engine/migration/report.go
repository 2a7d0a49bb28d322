package migration

import (
	"fmt"
	"sort"
	"strings"
)

// CollectionResult is the outcome of copying one collection subtree.
type CollectionResult struct {
	Collection string
	Copied     int
	Err        error
}

// UserResult is the outcome of migrating one user.
type UserResult struct {
	UserID      string
	TenantID    string
	Skipped     bool
	Collections []CollectionResult
	Err         error // fatal per-user error (tenant or membership synthesis)
}

// Report is the folded outcome of a whole run. It is built by accumulating
// results, not by threading a mutable stats object through the call chain.
type Report struct {
	DryRun          bool
	UsersProcessed  int
	UsersSkipped    int
	TenantsCreated  int
	DocumentsCopied map[string]int
	Errors          []string
}

func newReport(dryRun bool) *Report {
	return &Report{DryRun: dryRun, DocumentsCopied: make(map[string]int)}
}

func (r *Report) fold(res UserResult) {
	if res.Skipped {
		r.UsersSkipped++
		return
	}

	// Collection outcomes count even when the user later failed fatally:
	// those documents were actually copied.
	for _, c := range res.Collections {
		r.DocumentsCopied[c.Collection] += c.Copied
		if c.Err != nil {
			r.Errors = append(r.Errors, fmt.Sprintf("User %s %s: %v", res.UserID, c.Collection, c.Err))
		}
	}

	if res.Err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("User %s: %v", res.UserID, res.Err))
		return
	}

	r.UsersProcessed++
	r.TenantsCreated++
}

func (r *Report) Summary() string {
	var b strings.Builder
	if r.DryRun {
		b.WriteString("DRY RUN - no writes performed\n")
	}
	fmt.Fprintf(&b, "Users processed: %d\n", r.UsersProcessed)
	fmt.Fprintf(&b, "Users skipped:   %d\n", r.UsersSkipped)
	fmt.Fprintf(&b, "Tenants created: %d\n", r.TenantsCreated)

	collections := make([]string, 0, len(r.DocumentsCopied))
	for name := range r.DocumentsCopied {
		collections = append(collections, name)
	}
	sort.Strings(collections)
	for _, name := range collections {
		fmt.Fprintf(&b, "  %-16s %d documents\n", name, r.DocumentsCopied[name])
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "Errors (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return b.String()
}
