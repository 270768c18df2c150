package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/jneschisi/dart-frog/internal/registry"
)

// PrintApplicationsTable prints applications in a table format
func PrintApplicationsTable(w io.Writer, apps []registry.Application) {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Address", "VM Service", "Directory", "Request")

	for _, app := range apps {
		table.Append(
			app.ID,
			app.Address(),
			orDash(app.VMServiceURI),
			truncate(app.WorkingDirectory, 40),
			app.RequestID,
		)
	}

	table.Render()
}

// PrintApplicationDetail prints everything known about a single application
func PrintApplicationDetail(w io.Writer, app registry.Application) {
	printKey(w, "Application: ", app.ID)
	printKey(w, "Address: ", app.Address())
	printKey(w, "Debug Port: ", strconv.Itoa(app.DebugPort))
	printKey(w, "VM Service: ", orDash(app.VMServiceURI))
	printKey(w, "Directory: ", app.WorkingDirectory)
	printKey(w, "Start Request: ", app.RequestID)
}

func printKey(w io.Writer, key, value string) {
	KeyColor.Fprint(w, key)
	fmt.Fprintln(w, value)
}

// Helper functions

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
