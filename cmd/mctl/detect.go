package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abelbrown/mentions/internal/schema"
)

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file>...",
		Short: "Print the detected export shape of each file",
		Long: `Print the shape and result family detected for each export file.

Unrecognized files are reported with the top-level keys that were seen and
make the command exit non-zero.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, p := range args {
				data, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				name := filepath.Base(p)
				shape, err := schema.Detect(name, data)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%-40s %-14s %v\n", name, "unrecognized", err)
					continue
				}
				family := string(shape.Family())
				if family == "" {
					family = "-"
				}
				fmt.Fprintf(out, "%-40s %-14s %-11s %s\n", name, shape, family, humanize.Bytes(uint64(len(data))))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files unrecognized", failed, len(args))
			}
			return nil
		},
	}
}
