// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Protocol-level flags
	clientName string
	startID    int
	debugLog   bool
)

var rootCmd = &cobra.Command{
	Use:   "romictl",
	Short: "RomiSerial host-side command-line client",
	Long: `romictl is a CLI tool for talking to a RomiSerial firmware device: sending
one-shot commands, probing connectivity, monitoring the link, and driving an
interactive console.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]   (bridged transport, §6B)

For WebSocket authentication, the password is read from the ROMISERIAL_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Protocol-level flags
	rootCmd.PersistentFlags().StringVar(&clientName, "client-name", "romictl", "Name this client reports in its own log messages")
	rootCmd.PersistentFlags().IntVar(&startID, "start-id", -1, "Starting value of the request-id counter instead of a random one (the first request uses start-id+1)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Log every request and response")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
