//go:build !linux

package main

import (
	"fmt"

	"github.com/fasguard/fasguard-core/internal/logging"
	"github.com/fasguard/fasguard-core/internal/stixexport"
)

// Live capture uses AF_PACKET and is only available on Linux; other
// platforms read savefiles with -r.
func runLive(iface string, export *stixexport.Output, log *logging.Logger) error {
	return fmt.Errorf("live capture on %s is only supported on Linux; use -r with a pcap savefile", iface)
}
