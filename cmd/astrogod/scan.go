package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigreer/astrogod/internal/detect"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Detect attached astronomy equipment",
	Long: `Run one detection pass over USB devices, serial ports and network
discovery, and show each device with its identified type, driver and
driver status.`,
	Run: runScan,
}

var usbCmd = &cobra.Command{
	Use:   "usb",
	Short: "List USB devices with brand and matching installed drivers",
	Run:   runUSB,
}

func init() {
	scanCmd.Flags().Bool("json", false, "Output as JSON")
	usbCmd.Flags().Bool("json", false, "Output as JSON")
}

func runScan(cmd *cobra.Command, args []string) {
	jsonOut, _ := cmd.Flags().GetBool("json")
	a := newApp()
	ctx := context.Background()

	if err := a.kb.Init(ctx); err != nil {
		a.log.Warn().Err(err).Msg("knowledge base init failed")
	}

	devs, err := a.detector.DetectAll(ctx)
	if err != nil {
		fail("detection failed: %v", err)
	}

	if jsonOut {
		printJSON(devs)
		return
	}
	printDevices(devs)
}

func printDevices(devs []detect.DetectedDevice) {
	if len(devs) == 0 {
		fmt.Println("No equipment detected")
		return
	}

	fmt.Printf("%-22s %-13s %-32s %-26s %-10s %s\n", "ID", "TYPE", "NAME", "DRIVER", "STATUS", "CONF")
	fmt.Println(strings.Repeat("-", 112))
	for _, d := range devs {
		driver := d.DriverName
		if driver == "" {
			driver = "-"
		}
		if d.AutoInstallable {
			driver += " (auto)"
		}
		fmt.Printf("%-22s %-13s %-32s %-26s %-10s %d%%\n",
			d.ID, d.Type, truncate(d.Name, 32), truncate(driver, 26), strings.ToUpper(string(d.DriverStatus)), d.Confidence)
	}
}

func runUSB(cmd *cobra.Command, args []string) {
	jsonOut, _ := cmd.Flags().GetBool("json")
	a := newApp()

	devs, err := a.scanner.List(context.Background())
	if err != nil {
		fail("listing USB devices: %v", err)
	}

	if jsonOut {
		printJSON(devs)
		return
	}

	fmt.Printf("%-22s %-8s %-20s %-28s %s\n", "ID", "BUS:DEV", "BRAND", "DESCRIPTION", "DRIVERS")
	fmt.Println(strings.Repeat("-", 100))
	for _, d := range devs {
		brand := d.Brand
		if d.Model != "" {
			brand += " " + d.Model
		}
		if brand == "" {
			brand = "-"
		}
		drv := "-"
		if d.HasDrivers() {
			drv = strings.Join(d.MatchingDrivers, ",")
		}
		fmt.Printf("%-22s %-8s %-20s %-28s %s\n",
			d.ID, d.Bus+":"+d.Device, truncate(brand, 20), truncate(d.Description, 28), drv)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail("encoding JSON: %v", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
