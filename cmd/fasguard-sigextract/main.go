// fasguard-sigextract runs the signature-extraction engine over a detector
// report: a JSON file listing attacks and their packets. Emitted rules are
// appended to the configured Suricata rule files.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fasguard/fasguard-core/internal/config"
	"github.com/fasguard/fasguard-core/internal/logging"
	"github.com/fasguard/fasguard-core/internal/rulefmt"
	"github.com/fasguard/fasguard-core/internal/sigextract"
)

// reportFile is the on-disk JSON shape of a detector report. Payloads are
// base64 since rule-worthy attack bytes are rarely printable.
type reportFile struct {
	MultiAttack     bool         `json:"multi_attack"`
	BoundariesKnown bool         `json:"boundaries_known"`
	IPProtocol      int          `json:"ip_protocol"`
	Port            int          `json:"port"`
	IP1             string       `json:"ip1"`
	Port1           string       `json:"port1"`
	IP2             string       `json:"ip2"`
	Port2           string       `json:"port2"`
	Attacks         []attackFile `json:"attacks"`
}

type attackFile struct {
	Packets []packetFile `json:"packets"`
}

type packetFile struct {
	Time    time.Time `json:"time"`
	IPProto int       `json:"ip_proto"`
	SrcPort int       `json:"src_port"`
	DstPort int       `json:"dst_port"`
	Payload string    `json:"payload_base64"`
	PAttack float32   `json:"p_attack"`
}

func main() {
	var (
		configPath string
		reportPath string
	)
	flag.StringVar(&configPath, "c", "", "configuration file path")
	flag.StringVar(&configPath, "config", "", "configuration file path")
	flag.StringVar(&reportPath, "report", "", "detector report JSON file")
	flag.Parse()

	if reportPath == "" {
		fmt.Fprintln(os.Stderr, "a detector report file (--report) must be specified")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	format, err := logging.ParseLogFormat(cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logging.InitGlobalLogger(&logging.Config{
		Level:  level,
		Format: format,
		Output: os.Stderr,
	})
	log := logging.GetGlobalLogger().WithComponent("sigextract")

	report, err := loadReport(reportPath)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	scoring, err := loadScoring(cfg.LocalAlignment.ScoringEngineFile)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	extractor := sigextract.New()
	err = extractor.Configure(sigextract.Config{
		MinDepth:        cfg.ASG.MinDepth,
		MaxDepth:        cfg.ASG.MaxDepth,
		BloomFilterDir:  cfg.ASG.BloomFilterDir,
		BloomFromMemory: cfg.ASG.BloomFromMemory,
		IPProtocol:      report.IPProtocol,
		Port:            report.Port,
		RuleAction:      cfg.ASG.RuleAction,
		Endpoints: sigextract.Endpoints{
			IP1:   report.IP1,
			Port1: report.Port1,
			IP2:   report.IP2,
			Port2: report.Port2,
		},
		LevelPercentThresh: cfg.Dendrogram.LevelPercentThresh,
		Scoring:            scoring,
	}, report.MultiAttack, report.BoundariesKnown)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	for _, attack := range report.Attacks {
		if err := extractor.AppendAttack(); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		for _, p := range attack.Packets {
			payload, err := base64.StdEncoding.DecodeString(p.Payload)
			if err != nil {
				log.Errorf("decode packet payload: %v", err)
				os.Exit(1)
			}
			if err := extractor.AppendPacket(sigextract.Packet{
				Time:    p.Time,
				IPProto: p.IPProto,
				SrcPort: p.SrcPort,
				DstPort: p.DstPort,
				Payload: payload,
				PAttack: p.PAttack,
			}); err != nil {
				log.Errorf("%v", err)
				os.Exit(1)
			}
		}
	}

	rules, err := extractor.Extract()
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	log.Infof("extracted %d rules", len(rules))

	writer, err := rulefmt.NewWriter(
		cfg.ASG.SuricataRuleFile,
		cfg.ASG.SuricataPcreRuleFile,
		cfg.ASG.SuricataUnsupervisedClusterRuleFile,
	)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	if report.MultiAttack {
		err = writer.WriteClusterRules(rules)
	} else {
		err = writer.WriteContentRules(rules)
	}
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func loadReport(path string) (*reportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var report reportFile
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &report, nil
}

// loadScoring reads a scoring table from a JSON file, or returns the
// built-in default table when no file is configured.
func loadScoring(path string) (sigextract.ScoringTable, error) {
	if path == "" {
		return sigextract.DefaultScoring(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sigextract.ScoringTable{}, fmt.Errorf("read scoring file: %w", err)
	}
	var table struct {
		Match    int `json:"match"`
		Mismatch int `json:"mismatch"`
		Indel    int `json:"indel"`
	}
	if err := json.Unmarshal(data, &table); err != nil {
		return sigextract.ScoringTable{}, fmt.Errorf("parse scoring file %s: %w", path, err)
	}
	return sigextract.ScoringTable{
		Match:    table.Match,
		Mismatch: table.Mismatch,
		Indel:    table.Indel,
	}, nil
}
