package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "List installed INDI drivers",
	Run:   runDrivers,
}

func init() {
	driversCmd.Flags().Bool("available", false, "List drivers available from the upstream catalogs instead")
	driversCmd.Flags().Bool("running", false, "List drivers loaded by the running service's indiserver")
}

func runDrivers(cmd *cobra.Command, args []string) {
	available, _ := cmd.Flags().GetBool("available")
	running, _ := cmd.Flags().GetBool("running")

	if running {
		cfg, _ := loadConfig()
		var listing struct {
			Running []string `json:"running"`
		}
		if err := callAPI(cfg, http.MethodGet, "/drivers", &listing); err != nil {
			fail("fetching drivers: %v", err)
		}
		for _, n := range listing.Running {
			fmt.Println(n)
		}
		fmt.Printf("\n%d drivers running\n", len(listing.Running))
		return
	}

	a := newApp()

	if available {
		if err := a.kb.Init(context.Background()); err != nil {
			a.log.Warn().Err(err).Msg("knowledge base init failed")
		}
		names := a.resolver.ListAvailable(context.Background())
		for _, n := range names {
			fmt.Println(n)
		}
		fmt.Printf("\n%d drivers available\n", len(names))
		return
	}

	names := a.resolver.ListInstalled()
	for _, n := range names {
		path, err := a.resolver.Resolve(n)
		if err != nil {
			path = "-"
		}
		fmt.Printf("%-36s %s\n", n, path)
	}
	fmt.Printf("\n%d drivers installed\n", len(names))
}
