package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/roach88/catchup/internal/config"
	"github.com/roach88/catchup/internal/record"
	"github.com/roach88/catchup/internal/store"
)

// openStore opens the SQLite database the global flags point at: the
// --db flag wins, then $CATCHUP_DB, then the default path.
func openStore(opts *RootOptions) (*store.Store, error) {
	path := opts.Database
	if path == "" {
		path = os.Getenv(config.EnvDBPath)
	}
	if path == "" {
		path = config.DefaultDBPath
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("open database %s", path), err)
	}
	return st, nil
}

// runView is the CLI-facing shape of one ledger row.
type runView struct {
	RunID     string       `json:"run_id"`
	Scope     record.Scope `json:"scope"`
	Status    string       `json:"status"`
	Cursor    string       `json:"cursor"`
	Pages     int          `json:"pages"`
	Items     int          `json:"items"`
	LastError string       `json:"last_error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func newRunView(run record.Run) runView {
	return runView{
		RunID:     run.ID,
		Scope:     run.Scope,
		Status:    string(run.Status),
		Cursor:    run.Cursor,
		Pages:     run.PageCount,
		Items:     run.ItemCount,
		LastError: run.LastError,
		CreatedAt: run.CreatedAt,
		UpdatedAt: run.UpdatedAt,
	}
}

func (v runView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:     %s\n", v.RunID)
	fmt.Fprintf(&b, "Scope:   %s\n", v.Scope)
	fmt.Fprintf(&b, "Status:  %s\n", v.Status)
	fmt.Fprintf(&b, "Cursor:  %q\n", v.Cursor)
	fmt.Fprintf(&b, "Pages:   %d\n", v.Pages)
	fmt.Fprintf(&b, "Items:   %d\n", v.Items)
	if v.LastError != "" {
		fmt.Fprintf(&b, "Error:   %s\n", v.LastError)
	}
	fmt.Fprintf(&b, "Updated: %s", v.UpdatedAt.Format(time.RFC3339))
	return b.String()
}

// runListView renders a run listing, newest first.
type runListView []runView

func newRunListView(runs []record.Run) runListView {
	views := make(runListView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newRunView(run))
	}
	return views
}

func (v runListView) String() string {
	if len(v) == 0 {
		return "No runs."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-28s %-12s %6s %8s\n", "RUN", "SCOPE", "STATUS", "PAGES", "ITEMS")
	for i, run := range v {
		fmt.Fprintf(&b, "%-38s %-28s %-12s %6d %8d", run.RunID, run.Scope, run.Status, run.Pages, run.Items)
		if i < len(v)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
