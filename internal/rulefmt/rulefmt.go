// Package rulefmt renders signature records as Suricata/Snort rule text
// and writes them to the configured rule files. The rule shape is
// action proto ip1 port1 -> ip2 port2 (msg:"..."; content:"|hex hex|";
// sid:N; rev:R;), one line per rule, with multi-fragment rules carrying
// one content option per fragment in order.
package rulefmt

import (
	"fmt"
	"os"
	"strings"

	"github.com/fasguard/fasguard-core/internal/sigextract"
)

// Render returns the textual Suricata rule line for r, without a trailing
// newline.
func Render(r sigextract.Rule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %s -> %s %s (msg:\"%s\";",
		r.Action, protoName(r), r.Endpoints.IP1, r.Endpoints.Port1,
		r.Endpoints.IP2, r.Endpoints.Port2, r.Msg)
	for _, frag := range r.Content {
		fmt.Fprintf(&b, " content:\"|%s|\";", hexContent(frag))
	}
	fmt.Fprintf(&b, " sid:%d; rev:%d;)", r.SID, r.Rev)
	return b.String()
}

// hexContent renders frag as space-separated lowercase hex byte pairs, the
// |..| content encoding that needs no escaping of rule metacharacters.
func hexContent(frag []byte) string {
	var b strings.Builder
	for i, c := range frag {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", c)
	}
	return b.String()
}

func protoName(r sigextract.Rule) string {
	if r.Proto != "" {
		return r.Proto
	}
	return "tcp"
}

// Writer appends rendered rules to per-kind rule files. The PCRE file is
// created but never written by this engine: the core emits content rules
// only, and downstream tooling expects all three configured files to
// exist.
type Writer struct {
	contentPath string
	pcrePath    string
	clusterPath string
}

// NewWriter creates a Writer for the three configured rule file paths and
// ensures each file exists.
func NewWriter(contentPath, pcrePath, clusterPath string) (*Writer, error) {
	for _, p := range []string{contentPath, pcrePath, clusterPath} {
		if p == "" {
			continue
		}
		f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("rulefmt: create %s: %w", p, err)
		}
		f.Close()
	}
	return &Writer{contentPath: contentPath, pcrePath: pcrePath, clusterPath: clusterPath}, nil
}

// WriteContentRules appends rules to the direct content-rule file.
func (w *Writer) WriteContentRules(rules []sigextract.Rule) error {
	return appendRules(w.contentPath, rules)
}

// WriteClusterRules appends rules to the unsupervised-cluster rule file.
func (w *Writer) WriteClusterRules(rules []sigextract.Rule) error {
	return appendRules(w.clusterPath, rules)
}

func appendRules(path string, rules []sigextract.Rule) error {
	if path == "" || len(rules) == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("rulefmt: open %s: %w", path, err)
	}
	defer f.Close()

	for _, r := range rules {
		if _, err := fmt.Fprintln(f, Render(r)); err != nil {
			return fmt.Errorf("rulefmt: write %s: %w", path, err)
		}
	}
	return nil
}
