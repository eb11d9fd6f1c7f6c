// Package cmdutil holds the shared plumbing bardctl subcommands use:
// resolved global flags, API client construction, and output helpers.
package cmdutil

import (
	"fmt"
	"io"
	"os"

	"github.com/dtn-bard/bard/internal/cli/output"
	"github.com/dtn-bard/bard/pkg/apiclient"
)

// GlobalFlags carries the root command's persistent flags, synced in
// PersistentPreRun before any subcommand executes.
type GlobalFlags struct {
	ServerURL string
	Output    string
	NoColor   bool
}

// Flags is the resolved global flag set.
var Flags GlobalFlags

// defaultServerURL is where bardctl looks for bardd when neither the
// --server flag nor BARD_SERVER is set.
const defaultServerURL = "http://localhost:8080"

// GetClient builds an API client for the configured daemon address.
// Precedence: --server flag, BARD_SERVER environment variable, default.
func GetClient() *apiclient.Client {
	url := Flags.ServerURL
	if url == "" {
		url = os.Getenv("BARD_SERVER")
	}
	if url == "" {
		url = defaultServerURL
	}
	return apiclient.New(url)
}

// NewPrinter builds a printer honoring the global --output/--no-color
// flags.
func NewPrinter(w io.Writer) (*output.Printer, error) {
	format, err := output.ParseFormat(Flags.Output)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(w, format, !Flags.NoColor), nil
}

// PrintOutput renders data via the configured printer. When the result
// set is empty and the format is table, emptyMsg is printed instead of
// a bare header row.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string) error {
	printer, err := NewPrinter(w)
	if err != nil {
		return err
	}
	if isEmpty && printer.Format() == output.FormatTable {
		printer.Println(emptyMsg)
		return nil
	}
	return printer.Print(data)
}

// magnitude suffixes per the quota command surface: decimal K/M/G/T.
var magnitudes = []struct {
	suffix string
	value  uint64
}{
	{"T", 1_000_000_000_000},
	{"G", 1_000_000_000},
	{"M", 1_000_000},
	{"K", 1_000},
}

// FormatMagnitude renders n with a decimal K/M/G/T suffix, or as the
// exact integer when exact is set. Values under 1000 are always exact.
func FormatMagnitude(n uint64, exact bool) string {
	if exact || n < 1_000 {
		return fmt.Sprintf("%d", n)
	}
	for _, m := range magnitudes {
		if n >= m.value {
			v := float64(n) / float64(m.value)
			if v == float64(uint64(v)) {
				return fmt.Sprintf("%d%s", uint64(v), m.suffix)
			}
			return fmt.Sprintf("%.1f%s", v, m.suffix)
		}
	}
	return fmt.Sprintf("%d", n)
}

// FormatQuotaLimit is FormatMagnitude with the quota convention that
// zero means unlimited.
func FormatQuotaLimit(n uint64, exact bool) string {
	if n == 0 {
		return "unlimited"
	}
	return FormatMagnitude(n, exact)
}
