package rulefmt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasguard/fasguard-core/internal/sigextract"
)

func sampleRule() sigextract.Rule {
	return sigextract.Rule{
		Action: "alert",
		Proto:  "tcp",
		Endpoints: sigextract.Endpoints{
			IP1: "$EXTERNAL_NET", Port1: "any",
			IP2: "$HOME_NET", Port2: "80",
		},
		Msg:     "generated rule",
		Content: [][]byte{[]byte("world")},
		SID:     10000,
		Rev:     1,
	}
}

func TestRender(t *testing.T) {
	got := Render(sampleRule())
	want := `alert tcp $EXTERNAL_NET any -> $HOME_NET 80 (msg:"generated rule"; content:"|77 6f 72 6c 64|"; sid:10000; rev:1;)`
	assert.Equal(t, want, got)
}

func TestRenderMultipleFragments(t *testing.T) {
	r := sampleRule()
	r.Content = [][]byte{[]byte{0x00, 0xff}, []byte{0x41}}

	got := Render(r)
	assert.Contains(t, got, `content:"|00 ff|"; content:"|41|";`)
}

func TestRenderDefaultsProtoToTCP(t *testing.T) {
	r := sampleRule()
	r.Proto = ""
	assert.Contains(t, Render(r), "alert tcp ")
}

func TestWriterCreatesAllFiles(t *testing.T) {
	dir := t.TempDir()
	content := filepath.Join(dir, "fasguard.rules")
	pcre := filepath.Join(dir, "fasguard-pcre.rules")
	cluster := filepath.Join(dir, "fasguard-cluster.rules")

	w, err := NewWriter(content, pcre, cluster)
	require.NoError(t, err)

	for _, p := range []string{content, pcre, cluster} {
		_, err := os.Stat(p)
		assert.NoError(t, err, "%s must exist even before any rule is written", p)
	}

	require.NoError(t, w.WriteContentRules([]sigextract.Rule{sampleRule()}))
	require.NoError(t, w.WriteClusterRules([]sigextract.Rule{sampleRule()}))

	data, err := os.ReadFile(content)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), "|77 6f 72 6c 64|")

	pcreData, err := os.ReadFile(pcre)
	require.NoError(t, err)
	assert.Empty(t, pcreData, "the PCRE file is created but never written by this engine")
}

func TestWriterAppends(t *testing.T) {
	dir := t.TempDir()
	content := filepath.Join(dir, "a.rules")

	w, err := NewWriter(content, "", "")
	require.NoError(t, err)
	require.NoError(t, w.WriteContentRules([]sigextract.Rule{sampleRule()}))
	require.NoError(t, w.WriteContentRules([]sigextract.Rule{sampleRule()}))

	data, err := os.ReadFile(content)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}
