package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sigreer/astrogod/internal/monitor"
	"github.com/sigreer/astrogod/internal/orchestrator"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show indiserver and equipment status from the running service",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "Output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) {
	jsonOut, _ := cmd.Flags().GetBool("json")
	cfg, _ := loadConfig()

	var st orchestrator.Status
	if err := callAPI(cfg, http.MethodGet, "/orchestrator", &st); err != nil {
		fail("fetching status: %v", err)
	}
	var eq []monitor.EquipmentStatus
	if err := callAPI(cfg, http.MethodGet, "/status", &eq); err != nil {
		fail("fetching equipment status: %v", err)
	}

	if jsonOut {
		printJSON(map[string]any{"orchestrator": st, "equipment": eq})
		return
	}

	srv := st.Server
	state := "stopped"
	if srv.Running {
		state = fmt.Sprintf("running (pid %d, port %d, up %s)", srv.Pid, srv.Port,
			(time.Duration(srv.UptimeMs) * time.Millisecond).Truncate(time.Second))
	}
	fmt.Printf("indiserver:  %s\n", state)
	fmt.Printf("drivers:     %s\n", joinOrDash(srv.Drivers))
	fmt.Printf("clients:     %d\n", srv.ConnectedClients)
	fmt.Printf("restarts:    %d", st.RestartCount)
	if !st.LastRestart.IsZero() {
		fmt.Printf(" (last %s)", humanize.Time(st.LastRestart))
	}
	fmt.Println()
	fmt.Printf("usb scans:   %d, %d devices, %d astro\n", st.Scanner.ScanCount, st.Scanner.DeviceCount, st.Scanner.AstroDeviceCount)
	if st.PendingRestart {
		fmt.Println("restart pending")
	}

	if len(eq) == 0 {
		return
	}
	fmt.Println()
	fmt.Printf("%-22s %-13s %-32s %-13s %s\n", "ID", "TYPE", "NAME", "STATUS", "LAST SEEN")
	fmt.Println(strings.Repeat("-", 96))
	for _, e := range eq {
		fmt.Printf("%-22s %-13s %-32s %-13s %s\n",
			e.ID, e.Device.Type, truncate(e.Device.Name, 32), strings.ToUpper(string(e.Status)), humanize.Time(e.LastSeen))
		if e.ErrorMessage != "" {
			fmt.Printf("  error: %s\n", e.ErrorMessage)
		}
	}
}

func joinOrDash(ss []string) string {
	if len(ss) == 0 {
		return "-"
	}
	return strings.Join(ss, ", ")
}
