// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <command>",
	Short: "Send a single command and print the response",
	Long: `send transmits one command envelope, waits for the response, and
prints it, in the spirit of the original romiserial client's example
programs (docs/blink.cpp, docs/analogread.cpp).

Exit codes:
  0 - Response received with status 0 (success)
  1 - Response received with a non-zero status
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	client, stream, connInfo, err := newClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer stream.Close()

	fmt.Printf("Connection: %s\n", connInfo)

	resp := client.Send(args[0])
	fmt.Printf("Request id: %d\n", client.ID())
	fmt.Printf("%v\n", []interface{}(resp))

	if !resp.OK() {
		os.Exit(1)
	}
	return nil
}
