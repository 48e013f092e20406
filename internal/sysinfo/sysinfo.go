// Package sysinfo collects the platform fingerprint recorded by the
// systemdata table: architecture, machine, node, platform and processor
// identity, plus runtime build facts.
package sysinfo

import (
	"fmt"
	"os"
	"runtime"

	"github.com/mauriceling/serebo/internal/hashcomposite"
)

// Data holds one platform fingerprint snapshot. HashData joins every
// field above it with "|", in struct-field order, and HashComposite is
// its twelve-digest composite hash.
type Data struct {
	Architecture  string
	Machine       string
	Node          string
	Platform      string
	Processor     string
	GoVersion     string
	Compiler      string
	NumCPU        int
	HashData      string
	HashComposite string
}

// Collect gathers the current platform's fingerprint.
func Collect() Data {
	node, err := os.Hostname()
	if err != nil {
		node = "unknown"
	}

	d := Data{
		Architecture: runtime.GOARCH,
		Machine:      runtime.GOARCH,
		Node:         node,
		Platform:     fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH),
		Processor:    runtime.GOARCH,
		GoVersion:    runtime.Version(),
		Compiler:     runtime.Compiler,
		NumCPU:       runtime.NumCPU(),
	}
	d.HashData = fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%d",
		d.Architecture, d.Machine, d.Node, d.Platform, d.Processor,
		d.GoVersion, d.Compiler, d.NumCPU)
	d.HashComposite = hashcomposite.Compute([]byte(d.HashData))
	return d
}

// Fields returns the fingerprint as an ordered key/value slice,
// excluding the composite hash — SystemRecord persists one systemdata
// row per entry.
func (d Data) Fields() [][2]string {
	return [][2]string{
		{"architecture", d.Architecture},
		{"machine", d.Machine},
		{"node", d.Node},
		{"platform", d.Platform},
		{"processor", d.Processor},
		{"go_version", d.GoVersion},
		{"compiler", d.Compiler},
		{"num_cpu", fmt.Sprintf("%d", d.NumCPU)},
	}
}
