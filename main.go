// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// keycabinet is the key cabinet access kiosk.
package main

import (
	"os"

	"github.com/jeranaias/keycabinet/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
