// fasguard-detector runs the host-peering anomaly detector over captured
// traffic: a live interface (AF_PACKET, Linux) or a pcap savefile. Hosts
// whose peer-set size trips the anomaly test are logged as they flip, and
// the flagging packet is optionally exported as a STIX attack group.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fasguard/fasguard-core/internal/detector"
	"github.com/fasguard/fasguard-core/internal/logging"
	"github.com/fasguard/fasguard-core/internal/pcapreader"
	"github.com/fasguard/fasguard-core/internal/stixexport"
)

func main() {
	var (
		iface     string
		filter    string
		pcapFile  string
		exportDir string
		logLevel  string
	)
	flag.StringVar(&iface, "i", "", "network interface to capture from")
	flag.StringVar(&iface, "interface", "", "network interface to capture from")
	flag.StringVar(&filter, "f", "", "BPF filter expression")
	flag.StringVar(&filter, "filter", "", "BPF filter expression")
	flag.StringVar(&pcapFile, "r", "", "read packets from a pcap savefile instead of an interface")
	flag.StringVar(&exportDir, "x", "", "export attacks as STIX groups under this directory")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	level, err := logging.ParseLogLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logging.InitGlobalLogger(&logging.Config{
		Level:  level,
		Format: logging.TextFormat,
		Output: os.Stderr,
	})
	log := logging.GetGlobalLogger().WithComponent("detector")

	if iface == "" && pcapFile == "" {
		fmt.Fprintln(os.Stderr, "a network interface (-i) or a pcap savefile (-r) must be specified")
		os.Exit(1)
	}
	if iface != "" && pcapFile != "" {
		fmt.Fprintln(os.Stderr, "-i and -r are mutually exclusive")
		os.Exit(1)
	}
	if filter != "" {
		// BPF expression compilation needs libpcap; this build captures
		// unfiltered and relies on the detector's own parse-level drops.
		fmt.Fprintln(os.Stderr, "BPF filter expressions are not supported by this build")
		os.Exit(1)
	}

	var export *stixexport.Output
	if exportDir != "" {
		export, err = stixexport.Open(exportDir)
		if err != nil {
			log.Errorf("open export directory: %v", err)
			os.Exit(1)
		}
	}

	if pcapFile != "" {
		if err := runFromFile(pcapFile, export, log); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		return
	}

	if err := runLive(iface, export, log); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func runFromFile(path string, export *stixexport.Output, log *logging.Logger) error {
	src, err := pcapreader.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	d := detector.New(src.LinkType())
	r := reporter{det: d, export: export, log: log, flagged: make(map[detector.IPAddress]bool)}

	return src.Each(func(f pcapreader.Frame) error {
		if err := d.ProcessPacket(f.Timestamp, f.Data); err != nil {
			return err
		}
		return r.reportTransitions(f.Timestamp, f.Data)
	})
}

// reporter tracks anomaly-set transitions across packets so each host is
// announced once per flagging, not once per packet.
type reporter struct {
	det     *detector.Detector
	export  *stixexport.Output
	log     *logging.Logger
	flagged map[detector.IPAddress]bool
}

func (r *reporter) reportTransitions(timestamp time.Time, frame []byte) error {
	current := make(map[detector.IPAddress]bool)
	for _, h := range r.det.AnomalousHosts() {
		current[h] = true
		if r.flagged[h] {
			continue
		}
		r.log.Info("host flagged anomalous", map[string]interface{}{
			"host":       h.String(),
			"generation": r.det.CurrentGeneration(),
		})
		if err := r.exportAttack(timestamp, frame); err != nil {
			return err
		}
	}
	for h := range r.flagged {
		if !current[h] {
			r.log.Info("host no longer anomalous", map[string]interface{}{
				"host":       h.String(),
				"generation": r.det.CurrentGeneration(),
			})
		}
	}
	r.flagged = current
	return nil
}

// exportAttack writes the packet that coincided with an anomaly flip as a
// single-instance attack group.
func (r *reporter) exportAttack(timestamp time.Time, frame []byte) error {
	if r.export == nil {
		return nil
	}
	group, err := r.export.StartGroup()
	if err != nil {
		return err
	}
	inst, err := group.StartInstance()
	if err != nil {
		group.Abort()
		return err
	}
	if err := inst.AddPacket(timestamp, 1.0, frame); err != nil {
		group.Abort()
		return err
	}
	if err := inst.End(); err != nil {
		group.Abort()
		return err
	}
	return group.End()
}
