package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/sigreer/astrogod/internal/monitor"
)

var setupCmd = &cobra.Command{
	Use:   "setup [device-id]",
	Short: "Install and load drivers for detected equipment",
	Long: `Ask the running service to set up one device, or every detected
device when no id is given. Missing drivers are installed when the
knowledge base marks them auto-installable.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runSetup,
}

func runSetup(cmd *cobra.Command, args []string) {
	cfg, _ := loadConfig()

	if len(args) == 1 {
		var st monitor.EquipmentStatus
		if err := callAPI(cfg, http.MethodPost, "/devices/"+url.PathEscape(args[0])+"/setup", &st); err != nil {
			fail("setting up %s: %v", args[0], err)
		}
		fmt.Printf("%s: %s\n", args[0], st.Status)
		return
	}

	var sum monitor.SetupSummary
	if err := callAPI(cfg, http.MethodPost, "/setup", &sum); err != nil {
		fail("auto-setup: %v", err)
	}
	fmt.Printf("Devices: %d  Configured: %d  Failed: %d\n", sum.TotalDevices, sum.Configured, sum.Failed)
	for _, e := range sum.Errors {
		fmt.Printf("  - %s\n", e)
	}
}
