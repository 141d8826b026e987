// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	monitorCommand  string
	monitorInterval float64
	monitorStats    int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Repeatedly send a command and report responses and running statistics",
	Long: `monitor sends the given command on a fixed interval, prints every
response as it comes back, and periodically prints the client's running
transaction statistics — a continuous-link analogue of the send command.

Press Ctrl+C to stop.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorCommand, "command", "?[]", "Command to send on each interval")
	monitorCmd.Flags().Float64Var(&monitorInterval, "interval", 1.0, "Seconds between sends")
	monitorCmd.Flags().IntVar(&monitorStats, "stats-every", 10, "Print a statistics report every N sends (0 disables)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	client, stream, connInfo, err := newClient()
	if err != nil {
		return err
	}
	defer stream.Close()

	fmt.Printf("RomiSerial - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Command: %q every %.1fs\n", monitorCommand, monitorInterval)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ticker := time.NewTicker(time.Duration(monitorInterval * float64(time.Second)))
	defer ticker.Stop()

	var sent uint64
	for range ticker.C {
		resp := client.Send(monitorCommand)
		sent++

		status := "ok"
		if !resp.OK() {
			status = fmt.Sprintf("error %d", resp.Code())
		}
		fmt.Printf("[%s] %s: %v\n", time.Now().Format("15:04:05.000"), status, []interface{}(resp))

		if monitorStats > 0 && sent%uint64(monitorStats) == 0 {
			stats := client.StatsSnapshot()
			fmt.Print("\n" + stats.String() + "\n")
		}
	}

	return nil
}
