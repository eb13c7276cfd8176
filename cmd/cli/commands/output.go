package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inferloop/anonsearch/cmd/cli/config"
	"github.com/inferloop/anonsearch/internal/algorithms/factory"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
)

// textReport is implemented by results with a human readable rendering.
type textReport interface {
	writeText(w io.Writer) error
}

func setupLogger(level, format string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}

func joinNames() string {
	return strings.Join(factory.Names(), ", ")
}

// writeOutput renders result to the configured file, or to the command's
// output for "-".
func writeOutput(cmd *cobra.Command, out config.OutputConfig, result textReport) error {
	w := cmd.OutOrStdout()
	if out.File != "" && out.File != "-" {
		f, err := os.Create(out.File)
		if err != nil {
			return errors.NewConfigurationError(err, fmt.Sprintf("cannot create output file %s", out.File))
		}
		defer f.Close()
		w = f
	}
	return render(w, out.Format, result)
}

func render(w io.Writer, format string, result textReport) error {
	switch format {
	case constants.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case constants.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(result)
	case constants.FormatText, "":
		return result.writeText(w)
	}
	return errors.NewValidationError(errors.ErrInvalidConfiguration, errors.CodeInvalidFormat,
		fmt.Sprintf("unknown output format %q", format))
}

func (r *SearchResult) writeText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintln(&b, "Search Results:")
	fmt.Fprintln(&b, "===============")
	fmt.Fprintf(&b, "- Algorithm: %s\n", r.Algorithm)
	fmt.Fprintf(&b, "- Records: %d\n", r.Records)
	fmt.Fprintf(&b, "- Lattice Size: %s\n", r.LatticeSize)
	fmt.Fprintf(&b, "- Checks: %d\n", r.Checks)
	fmt.Fprintf(&b, "- Snapshot Hits/Misses: %d/%d\n", r.SnapshotHits, r.SnapshotMisses)
	fmt.Fprintf(&b, "- Duration: %s\n", r.Duration)

	if !r.Found {
		fmt.Fprintln(&b, "\nNo transformation satisfies the privacy criteria.")
	} else {
		fmt.Fprintln(&b, "\nOptimum:")
		fmt.Fprintf(&b, "- Generalization: %v\n", r.Generalization)
		fmt.Fprintf(&b, "- Information Loss (%s): %s\n", r.Metric, r.InformationLoss)
		fmt.Fprintf(&b, "- Optimal: %t\n", r.Optimal)

		attrs := make([]string, 0, len(r.Levels))
		for attr := range r.Levels {
			attrs = append(attrs, attr)
		}
		sort.Strings(attrs)
		for _, attr := range attrs {
			fmt.Fprintf(&b, "  - %s: %s\n", attr, r.Levels[attr])
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
