package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/sigreer/astrogod/internal/indi"
	"github.com/sigreer/astrogod/internal/system"
)

var propCmd = &cobra.Command{
	Use:   "prop",
	Short: "Read and write device properties on the running indiserver",
}

var propGetCmd = &cobra.Command{
	Use:   "get <device.property>",
	Short: "Print the elements and state of a property",
	Args:  cobra.ExactArgs(1),
	Run:   runPropGet,
}

var propSetCmd = &cobra.Command{
	Use:   "set <device.property> <element=value>...",
	Short: "Write a property and wait for it to settle",
	Args:  cobra.MinimumNArgs(2),
	Run:   runPropSet,
}

var propConnectCmd = &cobra.Command{
	Use:   "connect <device>",
	Short: "Connect a device",
	Args:  cobra.ExactArgs(1),
	Run:   runPropConnect,
}

var propDisconnectCmd = &cobra.Command{
	Use:   "disconnect <device>",
	Short: "Disconnect a device",
	Args:  cobra.ExactArgs(1),
	Run:   runPropConnect,
}

var propExposeCmd = &cobra.Command{
	Use:   "expose <camera> <seconds>",
	Short: "Take an exposure and wait for it to finish",
	Args:  cobra.ExactArgs(2),
	Run:   runPropExpose,
}

var propSlewCmd = &cobra.Command{
	Use:   "slew <mount> <ra-hours> <dec-degrees>",
	Short: "Slew a mount to JNow coordinates and track",
	Args:  cobra.ExactArgs(3),
	Run:   runPropSlew,
}

var propFocusCmd = &cobra.Command{
	Use:   "focus <focuser> <position>",
	Short: "Move a focuser to an absolute position, or by steps with --relative",
	Args:  cobra.ExactArgs(2),
	Run:   runPropFocus,
}

var propFilterCmd = &cobra.Command{
	Use:   "filter <wheel> <slot>",
	Short: "Select a filter slot",
	Args:  cobra.ExactArgs(2),
	Run:   runPropFilter,
}

func init() {
	propSetCmd.Flags().Duration("timeout", 0, "How long to wait for the property to settle (default from config)")
	propFocusCmd.Flags().Bool("relative", false, "Treat position as a signed step count")
	propCmd.AddCommand(propGetCmd, propSetCmd, propConnectCmd, propDisconnectCmd,
		propExposeCmd, propSlewCmd, propFocusCmd, propFilterCmd)
}

// propClient builds a property client with its watcher polling until ctx ends.
func propClient(ctx context.Context) *indi.Client {
	cfg, log := loadConfig()
	clk := clock.RealClock{}
	t := indi.NewCLITransport(system.ExecRunner{}, cfg.Props.Host, cfg.Server.Port)
	w := indi.NewWatcher(t, cfg.Props.PollInterval, clk, log)
	w.Start(ctx)
	return indi.NewClient(t, w, clk, cfg.Props.Timeout, log)
}

func propContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func parseProperty(s string) indi.Property {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		fail("property must be given as device.property, got %q", s)
	}
	return indi.Property{Device: s[:i], Name: s[i+1:]}
}

func runPropGet(cmd *cobra.Command, args []string) {
	ctx, cancel := propContext()
	defer cancel()
	c := propClient(ctx)
	prop := parseProperty(args[0])

	vals, err := c.Get(ctx, prop)
	if err != nil {
		fail("reading %s: %v", prop, err)
	}
	state, err := c.State(ctx, prop)
	if err != nil {
		fail("reading %s state: %v", prop, err)
	}

	names := make([]string, 0, len(vals))
	for n := range vals {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Printf("%s [%s]\n", prop, state)
	for _, n := range names {
		fmt.Printf("  %-24s %s\n", n, vals[n])
	}
}

func runPropSet(cmd *cobra.Command, args []string) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := propContext()
	defer cancel()
	c := propClient(ctx)
	prop := parseProperty(args[0])

	values := make(map[string]string, len(args)-1)
	for _, kv := range args[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			fail("expected element=value, got %q", kv)
		}
		values[k] = v
	}
	if err := c.SetAndWait(ctx, prop, values, timeout); err != nil {
		fail("setting %s: %v", prop, err)
	}
	fmt.Printf("%s ok\n", prop)
}

func runPropConnect(cmd *cobra.Command, args []string) {
	ctx, cancel := propContext()
	defer cancel()
	dev := propClient(ctx).Device(args[0])

	var err error
	if cmd.Name() == "disconnect" {
		err = dev.Disconnect(ctx)
	} else {
		err = dev.Connect(ctx)
	}
	if err != nil {
		fail("%s %s: %v", cmd.Name(), dev.Name(), err)
	}
	connected, err := dev.IsConnected(ctx)
	if err != nil {
		fail("reading connection of %s: %v", dev.Name(), err)
	}
	fmt.Printf("%s connected: %t\n", dev.Name(), connected)
}

func runPropExpose(cmd *cobra.Command, args []string) {
	secs := parseFloat(args[1])
	ctx, cancel := propContext()
	defer cancel()

	cam := propClient(ctx).Camera(args[0])
	if err := cam.StartExposure(ctx, secs); err != nil {
		if ctx.Err() != nil {
			_ = cam.AbortExposure(context.Background())
		}
		fail("exposure on %s: %v", args[0], err)
	}
	fmt.Printf("%s exposure of %gs complete\n", args[0], secs)
}

func runPropSlew(cmd *cobra.Command, args []string) {
	ra, dec := parseFloat(args[1]), parseFloat(args[2])
	ctx, cancel := propContext()
	defer cancel()

	m := propClient(ctx).Mount(args[0])
	if err := m.SlewToCoord(ctx, ra, dec); err != nil {
		if ctx.Err() != nil {
			_ = m.Abort(context.Background())
		}
		fail("slewing %s: %v", args[0], err)
	}
	fmt.Printf("%s tracking at RA %g h, Dec %g°\n", args[0], ra, dec)
}

func runPropFocus(cmd *cobra.Command, args []string) {
	relative, _ := cmd.Flags().GetBool("relative")
	pos := parseInt(args[1])
	ctx, cancel := propContext()
	defer cancel()

	f := propClient(ctx).Focuser(args[0])
	var err error
	if relative {
		err = f.MoveRelative(ctx, pos)
	} else {
		err = f.MoveAbsolute(ctx, pos)
	}
	if err != nil {
		fail("moving %s: %v", args[0], err)
	}
	fmt.Printf("%s move complete\n", args[0])
}

func runPropFilter(cmd *cobra.Command, args []string) {
	slot := parseInt(args[1])
	ctx, cancel := propContext()
	defer cancel()

	if err := propClient(ctx).FilterWheel(args[0]).SetFilter(ctx, slot); err != nil {
		fail("selecting filter on %s: %v", args[0], err)
	}
	fmt.Printf("%s at slot %d\n", args[0], slot)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		fail("invalid number %q", s)
	}
	return v
}

func parseInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		fail("invalid integer %q", s)
	}
	return v
}
