// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var pingCommand string

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Probe connectivity by sending a command and waiting for any response",
	Long: `ping sends a single command (by default "?[]", a harmless opcode most
firmwares either accept or reject with an application error) and reports
whether a response with a non-negative status came back within the
configured timeout.

Exit codes:
  0 - A response with status >= 0 was received (success or application error)
  1 - Any negative status: timeout, a client-side or envelope-layer error,
      or a negative grammar/dispatch error reported by the firmware
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().StringVar(&pingCommand, "command", "?[]", "Command to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	client, stream, connInfo, err := newClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer stream.Close()

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Sending %q...\n\n", pingCommand)

	resp := client.Send(pingCommand)

	switch {
	case resp.Code() >= 0:
		fmt.Printf("SUCCESS: received %v\n", []interface{}(resp))
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "FAILED: negative status %d (%v)\n", resp.Code(), []interface{}(resp))
		os.Exit(1)
	}
	return nil
}
