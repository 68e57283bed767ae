//go:build linux

package main

import (
	"fmt"

	"github.com/google/gopacket/pcapgo"

	"github.com/fasguard/fasguard-core/internal/detector"
	"github.com/fasguard/fasguard-core/internal/linklayer"
	"github.com/fasguard/fasguard-core/internal/logging"
	"github.com/fasguard/fasguard-core/internal/stixexport"
)

// runLive captures from iface with an AF_PACKET socket (pcapgo's pure-Go
// EthernetHandle) and feeds every frame to the detector until the capture
// fails or the process is killed.
func runLive(iface string, export *stixexport.Output, log *logging.Logger) error {
	handle, err := pcapgo.NewEthernetHandle(iface)
	if err != nil {
		return fmt.Errorf("open interface %s: %w", iface, err)
	}
	defer handle.Close()

	d := detector.New(linklayer.Ethernet)
	r := reporter{det: d, export: export, log: log, flagged: make(map[detector.IPAddress]bool)}

	log.Infof("capturing on %s", iface)
	for {
		data, ci, err := handle.ReadPacketData()
		if err != nil {
			return fmt.Errorf("capture on %s: %w", iface, err)
		}
		if err := d.ProcessPacket(ci.Timestamp, data); err != nil {
			return err
		}
		if err := r.reportTransitions(ci.Timestamp, data); err != nil {
			return err
		}
	}
}
