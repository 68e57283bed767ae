// Package sigextract implements the signature-extraction engine: given
// clusters of attack packets, it performs hierarchical local-alignment
// clustering on payloads, mines candidate byte n-grams, filters them
// through a benign Bloom filter, and reduces the survivors into signature
// rule records.
package sigextract

import (
	"fmt"
	"time"

	"github.com/fasguard/fasguard-core/internal/bloomfilter"
)

// Packet is one captured packet belonging to an attack, as delivered by the
// external anomaly detector.
type Packet struct {
	Time    time.Time
	IPProto int
	SrcPort int
	DstPort int
	Payload []byte
	PAttack float32
}

// Attack is one instance of an attack: an ordered list of packets believed
// to belong together.
type Attack struct {
	Packets []Packet
}

// Endpoints names the two hosts a rule record's five-tuple refers to.
// Packets carry only service and port numbers, so the extractor takes the
// endpoint addresses once, at Configure time, rather than per packet.
type Endpoints struct {
	IP1   string
	Port1 string
	IP2   string
	Port2 string
}

// Config is the extractor's configuration: the n-gram depth window, the
// benign Bloom filter selection, and the clustering and alignment
// parameters.
type Config struct {
	MinDepth int
	MaxDepth int

	// BloomFilterDir is the directory holding benign Bloom filters named
	// proto_<p>_port_<q>_min_<m>_max_<M>.bloom.
	BloomFilterDir  string
	BloomFromMemory bool

	// IPProtocol and Port select both the expected single (proto, port) of
	// every packet in the report and the benign Bloom filter to load.
	IPProtocol int
	Port       int

	RuleAction string // e.g. "alert"
	Endpoints  Endpoints

	// LevelPercentThresh is the dendrogram cluster-splitting threshold
	// (fraction, e.g. 0.5 for 50%).
	LevelPercentThresh float64

	// Scoring is the Smith-Waterman scoring table. Configure replaces the
	// zero value with DefaultScoring().
	Scoring ScoringTable
}

// Rule is one emitted signature, independent of any concrete rule-text
// syntax; package rulefmt renders Rule values to Suricata/Snort text.
type Rule struct {
	Action    string
	Proto     string // "tcp" or "udp"
	Endpoints Endpoints
	Msg       string
	Content   [][]byte // hex-content fragments; >1 when a long segment was split
	SID uint64
	Rev uint64
}

type state int

const (
	stateReady state = iota
	stateConfigured
	stateLoaded
	stateEmitted
)

// Extractor is the signature-extraction engine's state machine: Ready ->
// (Configure) -> Configured -> (AppendAttack, AppendPacket...)* -> Loaded ->
// (Extract) -> Emitted. Extract is terminal for a given Extractor; start a
// new one per detector report.
type Extractor struct {
	state state
	cfg   Config
	bloom *bloomfilter.Filter

	multiAttack     bool
	boundariesKnown bool

	attacks []Attack

	sidCounter uint64
}

// New creates an Extractor in the Ready state. SIDs start at 10000 and
// auto-increment per run; the counter is per-Extractor, not global.
func New() *Extractor {
	return &Extractor{sidCounter: startingSID}
}

// startingSID is the base of the custom-rule SID range.
const startingSID = 10000

// Configure sets the report-level flags and loads the benign Bloom filter
// named by cfg's protocol/port/depth bounds, transitioning Ready ->
// Configured. It is invalid to call Configure twice on the same Extractor.
func (e *Extractor) Configure(cfg Config, multiAttack, boundariesKnown bool) error {
	if e.state != stateReady {
		return fmt.Errorf("sigextract: Configure called out of order (state %d)", e.state)
	}
	if cfg.MinDepth <= 0 || cfg.MaxDepth < cfg.MinDepth {
		return fmt.Errorf("sigextract: invalid ngram bounds [%d,%d]", cfg.MinDepth, cfg.MaxDepth)
	}

	path := bloomFilename(cfg.BloomFilterDir, cfg.IPProtocol, cfg.Port, cfg.MinDepth, cfg.MaxDepth)
	bloom, err := bloomfilter.Load(path, cfg.BloomFromMemory)
	if err != nil {
		return fmt.Errorf("sigextract: load benign bloom filter %s: %w", path, err)
	}
	params := bloom.Params()
	if params.MinNgram != cfg.MinDepth || params.MaxNgram != cfg.MaxDepth {
		bloom.Close()
		return fmt.Errorf("sigextract: bloom file %s has ngram bounds [%d,%d], expected [%d,%d]",
			path, params.MinNgram, params.MaxNgram, cfg.MinDepth, cfg.MaxDepth)
	}

	if cfg.Scoring == (ScoringTable{}) {
		cfg.Scoring = DefaultScoring()
	}

	e.cfg = cfg
	e.bloom = bloom
	e.multiAttack = multiAttack
	e.boundariesKnown = boundariesKnown
	e.state = stateConfigured
	return nil
}

// bloomFilename builds the benign-Bloom filename convention.
func bloomFilename(dir string, proto, port, minN, maxN int) string {
	return fmt.Sprintf("%s/proto_%d_port_%d_min_%d_max_%d.bloom", dir, proto, port, minN, maxN)
}

// AppendAttack starts a new attack instance; all subsequently appended
// packets belong to it. Valid from Configured or Loaded.
func (e *Extractor) AppendAttack() error {
	if e.state != stateConfigured && e.state != stateLoaded {
		return fmt.Errorf("sigextract: AppendAttack called out of order (state %d)", e.state)
	}
	e.attacks = append(e.attacks, Attack{})
	e.state = stateLoaded
	return nil
}

// AppendPacket appends pkt to the current (most recently started) attack.
// AppendAttack must have been called at least once first.
func (e *Extractor) AppendPacket(pkt Packet) error {
	if e.state != stateLoaded {
		return fmt.Errorf("sigextract: AppendPacket called before any AppendAttack (state %d)", e.state)
	}
	n := len(e.attacks)
	e.attacks[n-1].Packets = append(e.attacks[n-1].Packets, pkt)
	return nil
}

// Extract runs the configured mode's mining pipeline over every appended
// attack and returns the emitted rule records, transitioning Loaded ->
// Emitted. It is terminal: Extract may not be called twice.
func (e *Extractor) Extract() ([]Rule, error) {
	if e.state != stateLoaded {
		return nil, fmt.Errorf("sigextract: Extract called out of order (state %d)", e.state)
	}
	defer func() { e.state = stateEmitted }()

	if err := e.checkUniformFiveTuple(); err != nil {
		return nil, err
	}

	var rules []Rule
	var err error
	switch {
	case !e.multiAttack:
		rules, err = e.extractSingleAttack()
	case e.multiAttack && !e.boundariesKnown:
		rules, err = e.extractClustered()
	default:
		return nil, fmt.Errorf("sigextract: pre-separated mode (multi_attack && boundaries_known) is reserved, not implemented")
	}
	if err != nil {
		return nil, err
	}

	if e.bloom != nil {
		e.bloom.Close()
	}
	return rules, nil
}

// checkUniformFiveTuple enforces the precondition that every packet in
// the report shares one (proto, dst_port), failing loudly rather than
// silently mining a mixed stream.
func (e *Extractor) checkUniformFiveTuple() error {
	for _, a := range e.attacks {
		for _, p := range a.Packets {
			if p.IPProto != e.cfg.IPProtocol || p.DstPort != e.cfg.Port {
				return fmt.Errorf("sigextract: mixed (proto,port) in report: packet has (%d,%d), expected (%d,%d)",
					p.IPProto, p.DstPort, e.cfg.IPProtocol, e.cfg.Port)
			}
		}
	}
	return nil
}

// nextSID returns the next SID and increments the per-run counter.
func (e *Extractor) nextSID() uint64 {
	sid := e.sidCounter
	e.sidCounter++
	return sid
}

// makeRule builds a Rule for segment, splitting it into multiple content
// fragments when it exceeds the 255-byte content limit.
func (e *Extractor) makeRule(msg string, segment []byte) Rule {
	proto := "tcp"
	if e.cfg.IPProtocol == 17 {
		proto = "udp"
	}
	return Rule{
		Action:    e.cfg.RuleAction,
		Proto:     proto,
		Endpoints: e.cfg.Endpoints,
		Msg:       msg,
		Content:   splitContent(segment),
		SID:       e.nextSID(),
		Rev:       1,
	}
}

const maxContentFragment = 255

// splitContent breaks segment into chunks of at most maxContentFragment
// bytes, preserving order.
func splitContent(segment []byte) [][]byte {
	if len(segment) == 0 {
		return nil
	}
	var out [][]byte
	for off := 0; off < len(segment); off += maxContentFragment {
		end := off + maxContentFragment
		if end > len(segment) {
			end = len(segment)
		}
		out = append(out, segment[off:end])
	}
	return out
}
