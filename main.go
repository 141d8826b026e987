// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// romictl - RomiSerial host-side command-line client.

package main

import (
	"fmt"
	"os"

	"github.com/kazwalker/romiserial/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
