package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sigreer/astrogod/internal/knowledge"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect and refresh the equipment knowledge base",
}

var kbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts by type and manufacturer",
	Run:   runKBStats,
}

var kbUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Refresh from the upstream driver catalogs now",
	Run:   runKBUpdate,
}

var kbLookupCmd = &cobra.Command{
	Use:   "lookup <vid:pid|name>",
	Short: "Look up equipment by USB id or name",
	Args:  cobra.ExactArgs(1),
	Run:   runKBLookup,
}

func init() {
	kbCmd.AddCommand(kbStatsCmd, kbUpdateCmd, kbLookupCmd)
}

func runKBStats(cmd *cobra.Command, args []string) {
	a := newApp()
	if err := a.kb.Init(context.Background()); err != nil {
		a.log.Warn().Err(err).Msg("knowledge base init failed")
	}
	st := a.kb.Stats()

	updated := "never"
	if !st.LastUpdated.IsZero() {
		updated = humanize.Time(st.LastUpdated)
	}
	fmt.Printf("Entries:      %d (%d by USB id, %d by name)\n", st.Total, st.ByID, st.ByName)
	fmt.Printf("Source:       %s\n", st.Source)
	fmt.Printf("Last updated: %s\n", updated)

	fmt.Println("\nBy type:")
	types := make([]string, 0, len(st.ByType))
	for t := range st.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-14s %d\n", t, st.ByType[knowledge.Type(t)])
	}

	fmt.Println("\nBy manufacturer:")
	mfrs := make([]string, 0, len(st.ByManufacturer))
	for m := range st.ByManufacturer {
		mfrs = append(mfrs, m)
	}
	sort.Strings(mfrs)
	for _, m := range mfrs {
		fmt.Printf("  %-20s %d\n", m, st.ByManufacturer[m])
	}
}

func runKBUpdate(cmd *cobra.Command, args []string) {
	a := newApp()
	a.resolver.RefreshCatalog()
	if err := a.kb.ForceUpdate(context.Background()); err != nil {
		fail("updating knowledge base: %v", err)
	}
	st := a.kb.Stats()
	fmt.Printf("Knowledge base updated: %d entries from %s\n", st.Total, st.Source)
}

func runKBLookup(cmd *cobra.Command, args []string) {
	a := newApp()
	if err := a.kb.Init(context.Background()); err != nil {
		a.log.Warn().Err(err).Msg("knowledge base init failed")
	}

	query := args[0]
	var (
		e  knowledge.Entry
		ok bool
	)
	if vid, pid, isID := strings.Cut(query, ":"); isID && len(vid) == 4 {
		e, ok = a.kb.Lookup(vid, pid)
	}
	if !ok {
		e, ok = a.kb.LookupByName(query)
	}
	if !ok {
		fail("no equipment matches %q", query)
	}

	fmt.Printf("Type:         %s\n", e.Type)
	fmt.Printf("Manufacturer: %s\n", e.Manufacturer)
	fmt.Printf("Model:        %s\n", e.Model)
	fmt.Printf("Driver:       %s\n", e.DriverName)
	fmt.Printf("Package:      %s\n", e.Package())
	fmt.Printf("Auto-install: %t\n", e.AutoInstallable)
}
