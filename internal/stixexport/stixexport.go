// Package stixexport writes attack groups to a maildir-style directory
// tree <root>/{tmp,new,cur}/. A group accumulates under tmp/<group>/ while
// open: per-packet envelopes append to tmp/<group>/instances/<inst>, each
// finished instance is concatenated into tmp/<group>/all.xml wrapped in an
// incident envelope, and on group end the completed file moves atomically
// into new/<group>.xml. Consumers rename new/ files into cur/ once
// processed; this package creates cur/ but never writes to it.
package stixexport

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	packageHeader = `<?xml version="1.0" encoding="UTF-8"?>
<stix:STIX_Package xmlns:stix="http://stix.mitre.org/stix-1">
  <stix:Incidents>
`
	packageFooter = `  </stix:Incidents>
</stix:STIX_Package>
`
	incidentHeader = `    <stix:Incident>
`
	incidentFooter = `    </stix:Incident>
`
)

// Output is an open export root with its tmp/new/cur subdirectories
// created.
type Output struct {
	tmpDir string
	newDir string
	curDir string
}

// Open prepares root for export, creating root and its three
// subdirectories if absent.
func Open(root string) (*Output, error) {
	o := &Output{
		tmpDir: filepath.Join(root, "tmp"),
		newDir: filepath.Join(root, "new"),
		curDir: filepath.Join(root, "cur"),
	}
	for _, dir := range []string{root, o.tmpDir, o.newDir, o.curDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("stixexport: create %s: %w", dir, err)
		}
	}
	return o, nil
}

// Group is one attack group being written under tmp/<group>/.
type Group struct {
	output       *Output
	name         string
	groupDir     string
	instancesDir string
	all          *os.File
	instanceSeq  int
}

// StartGroup opens a new attack group directory and its all.xml with the
// package header written.
func (o *Output) StartGroup() (*Group, error) {
	groupDir, err := os.MkdirTemp(o.tmpDir, "attack-")
	if err != nil {
		return nil, fmt.Errorf("stixexport: create group dir: %w", err)
	}

	g := &Group{
		output:       o,
		name:         filepath.Base(groupDir),
		groupDir:     groupDir,
		instancesDir: filepath.Join(groupDir, "instances"),
	}
	if err := os.Mkdir(g.instancesDir, 0700); err != nil {
		os.RemoveAll(groupDir)
		return nil, fmt.Errorf("stixexport: create instances dir: %w", err)
	}

	all, err := os.OpenFile(filepath.Join(groupDir, "all.xml"),
		os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		os.RemoveAll(groupDir)
		return nil, fmt.Errorf("stixexport: create all.xml: %w", err)
	}
	if _, err := all.WriteString(packageHeader); err != nil {
		all.Close()
		os.RemoveAll(groupDir)
		return nil, fmt.Errorf("stixexport: write package header: %w", err)
	}

	g.all = all
	return g, nil
}

// Instance is one attack instance file under the group's instances/
// directory.
type Instance struct {
	group *Group
	path  string
	f     *os.File
}

// StartInstance opens a new instance file for per-packet writes.
func (g *Group) StartInstance() (*Instance, error) {
	g.instanceSeq++
	path := filepath.Join(g.instancesDir, fmt.Sprintf("%06d", g.instanceSeq))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("stixexport: create instance file: %w", err)
	}
	return &Instance{group: g, path: path, f: f}, nil
}

// AddPacket appends one packet envelope to the instance file: timestamp,
// attack probability, and the base64 of the raw packet bytes.
func (inst *Instance) AddPacket(timestamp time.Time, probAttack float64, packet []byte) error {
	_, err := fmt.Fprintf(inst.f,
		"      <Packet timestamp=%q prob_attack=\"%g\">\n        <Data>%s</Data>\n      </Packet>\n",
		timestamp.UTC().Format(time.RFC3339Nano),
		probAttack,
		base64.StdEncoding.EncodeToString(packet))
	if err != nil {
		return fmt.Errorf("stixexport: write packet envelope: %w", err)
	}
	return nil
}

// End closes the instance and concatenates its contents into the group's
// all.xml wrapped in an incident envelope. The instance file is removed
// after a successful copy.
func (inst *Instance) End() error {
	if err := inst.f.Close(); err != nil {
		return fmt.Errorf("stixexport: close instance: %w", err)
	}

	src, err := os.Open(inst.path)
	if err != nil {
		return fmt.Errorf("stixexport: reopen instance: %w", err)
	}
	defer src.Close()

	if _, err := inst.group.all.WriteString(incidentHeader); err != nil {
		return fmt.Errorf("stixexport: write incident header: %w", err)
	}
	if _, err := io.Copy(inst.group.all, src); err != nil {
		return fmt.Errorf("stixexport: concatenate instance: %w", err)
	}
	if _, err := inst.group.all.WriteString(incidentFooter); err != nil {
		return fmt.Errorf("stixexport: write incident footer: %w", err)
	}

	return os.Remove(inst.path)
}

// End finishes the group: appends the package footer to all.xml and moves
// it atomically to new/<group>.xml. The tmp group directory is removed on
// success.
func (g *Group) End() error {
	if _, err := g.all.WriteString(packageFooter); err != nil {
		g.all.Close()
		return fmt.Errorf("stixexport: write package footer: %w", err)
	}
	if err := g.all.Sync(); err != nil {
		g.all.Close()
		return fmt.Errorf("stixexport: sync all.xml: %w", err)
	}
	if err := g.all.Close(); err != nil {
		return fmt.Errorf("stixexport: close all.xml: %w", err)
	}

	dest := filepath.Join(g.output.newDir, g.name+".xml")
	if err := os.Rename(filepath.Join(g.groupDir, "all.xml"), dest); err != nil {
		return fmt.Errorf("stixexport: move into new/: %w", err)
	}

	return os.RemoveAll(g.groupDir)
}

// Abort discards an unfinished group without publishing anything to new/.
func (g *Group) Abort() error {
	g.all.Close()
	return os.RemoveAll(g.groupDir)
}
