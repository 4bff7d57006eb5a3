package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/antoniostano/kindred/internal/memory"
)

func newPeopleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "people",
		Short: "List remembered people",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			store, err := memory.NewStore(cmd.Context(), memory.Config{
				Kind:        cfg.MemoryStore,
				JSONPath:    cfg.MemoryJSONPath,
				SQLitePath:  cfg.MemorySQLitePath,
				DatabaseURL: cfg.DatabaseURL,
			}, log)
			if err != nil {
				return err
			}
			defer store.Close()

			people, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			return printPeople(cmd, people)
		},
	}
}

func printPeople(cmd *cobra.Command, people []memory.Record) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tRELATIONSHIP\tVISITS\tLAST VISIT\tLAST SUMMARY")
	for _, p := range people {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			p.PersonID, p.Name, p.Relationship, p.VisitCount, p.LastVisit, firstLine(p.LastSummary))
	}
	return w.Flush()
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}
