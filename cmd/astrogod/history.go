package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sigreer/astrogod/internal/db"
)

var historyCmd = &cobra.Command{
	Use:   "history [device-id]",
	Short: "Show recorded equipment and server events",
	Args:  cobra.MaximumNArgs(1),
	Run:   runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	historyCmd.Flags().Bool("server", false, "Show indiserver events instead of equipment events")
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	server, _ := cmd.Flags().GetBool("server")
	cfg, _ := loadConfig()

	if !cfg.HistoryEnabled() {
		fail("history is disabled in config")
	}
	store, err := db.New(cfg.DB.Path)
	if err != nil {
		fail("opening history: %v", err)
	}
	defer store.Close()

	if server {
		evs, err := store.GetServerEvents(limit)
		if err != nil {
			fail("reading server events: %v", err)
		}
		for _, e := range evs {
			fmt.Printf("%-16s %-16s pid=%-7d %s %s\n",
				humanize.Time(e.Timestamp), e.EventType, e.Pid, joinOrDash(e.Drivers), e.Detail)
		}
		return
	}

	deviceID := ""
	if len(args) == 1 {
		deviceID = args[0]
	}
	evs, err := store.GetEquipmentEvents(deviceID, limit)
	if err != nil {
		fail("reading equipment events: %v", err)
	}
	fmt.Printf("%-16s %-22s %-26s %s\n", "WHEN", "DEVICE", "EVENT", "STATUS")
	fmt.Println(strings.Repeat("-", 90))
	for _, e := range evs {
		change := e.NewStatus
		if e.OldStatus != "" {
			change = e.OldStatus + " -> " + e.NewStatus
		}
		fmt.Printf("%-16s %-22s %-26s %s\n", humanize.Time(e.Timestamp), e.DeviceID, e.EventType, change)
		if e.ErrorMessage != "" {
			fmt.Printf("  error: %s\n", e.ErrorMessage)
		}
	}
}
