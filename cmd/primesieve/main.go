// Copyright (C) 2024 The Primesieve Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command primesieve is an illustrative CLI wrapper around package
// sieve: it picks a prime type and tier, optionally loads a YAML
// config file, reports the host's autovectorization-relevant ISA
// feature bits, and drives a search to completion, writing an audit
// record of the run when -audit (or audit_to in the config) names a file. It is not meant as the only way to use package
// sieve; it demonstrates one.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	bigmath "math/big"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/cpu"
	"sigs.k8s.io/yaml"

	"github.com/gosieve/primesieve/auditlog"
	"github.com/gosieve/primesieve/bignum"
	"github.com/gosieve/primesieve/internal/ints"
	"github.com/gosieve/primesieve/sieve"
)

var (
	dashq           string
	dashrandombits  int
	dashtype        string
	dashtier        string
	dashcount       int
	dashconfig      string
	dashout         string
	dashquiet       bool

	flagDefaultUsage func()
)

// config mirrors the flags that can also be set from a YAML file; flags
// take precedence over a loaded file.
type config struct {
	Q       string `json:"q,omitempty"`
	Type    string `json:"type,omitempty"`
	Tier    string `json:"tier,omitempty"`
	Count   int    `json:"count,omitempty"`
	AuditTo string `json:"audit_to,omitempty"`
}

func init() {
	flagDefaultUsage = flag.CommandLine.Usage
	flag.CommandLine.Usage = printHelp

	flag.StringVar(&dashq, "q", "", "starting candidate, as hex (with or without 0x prefix)")
	flag.IntVar(&dashrandombits, "random-bits", 0, "generate a random odd starting candidate of this bit width instead of -q")
	flag.StringVar(&dashtype, "type", "plain", "prime type: plain, twin, or safe")
	flag.StringVar(&dashtier, "tier", "s", "table tier: s, m, or l")
	flag.IntVar(&dashcount, "count", 1, "number of survivors to emit (clamped to [1, 1<<16])")
	flag.StringVar(&dashconfig, "config", "", "optional YAML config file (flags override it)")
	flag.StringVar(&dashout, "audit", "", "path to append a zstd-compressed audit record to")
	flag.BoolVar(&dashquiet, "quiet", false, "suppress ISA capability report on stderr")
}

func printHelp() {
	fmt.Fprintln(os.Stderr, "primesieve: a SIMD-friendly trial-division sieve front-end")
	flagDefaultUsage()
}

func exitf(f string, args ...any) {
	exit(fmt.Errorf(f, args...))
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func loadConfig(path string) (config, error) {
	var c config
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return c, nil
}

func parsePrimeType(s string) (sieve.Mode, error) {
	switch s {
	case "plain":
		return sieve.Plain, nil
	case "twin":
		return sieve.Twin, nil
	case "safe":
		return sieve.Safe, nil
	default:
		return 0, fmt.Errorf("unknown prime type %q (want plain, twin, or safe)", s)
	}
}

func parseTier(s string) (sieve.Mode, error) {
	switch s {
	case "s":
		return sieve.TierS, nil
	case "m":
		return sieve.TierM, nil
	case "l":
		return sieve.TierL, nil
	default:
		return 0, fmt.Errorf("unknown tier %q (want s, m, or l)", s)
	}
}

// reportISA writes the host's capability bits relevant to the
// autovectorization claims in the lanes package documentation: whether
// the Go compiler's SSA backend has AVX2/AVX-512 or ASIMD to target on
// this machine. It does not change sieve's behavior; package lanes'
// straight-line loops compile the same way regardless.
func reportISA() {
	if dashquiet {
		return
	}
	fmt.Fprintf(os.Stderr, "amd64: avx2=%v avx512bw=%v avx512vl=%v\n",
		cpu.X86.HasAVX2, cpu.X86.HasAVX512BW, cpu.X86.HasAVX512VL)
	fmt.Fprintf(os.Stderr, "arm64: asimd=%v sve=%v\n", cpu.ARM64.HasASIMD, cpu.ARM64.HasSVE)
}

func main() {
	flag.Parse()
	sieve.Errorf = log.Printf

	fileCfg, err := loadConfig(dashconfig)
	if err != nil {
		exit(err)
	}
	if dashq == "" && fileCfg.Q != "" {
		dashq = fileCfg.Q
	}
	if !flagWasSet("type") && fileCfg.Type != "" {
		dashtype = fileCfg.Type
	}
	if !flagWasSet("tier") && fileCfg.Tier != "" {
		dashtier = fileCfg.Tier
	}
	if !flagWasSet("count") && fileCfg.Count != 0 {
		dashcount = fileCfg.Count
	}
	if dashout == "" && fileCfg.AuditTo != "" {
		dashout = fileCfg.AuditTo
	}

	if dashq == "" && dashrandombits == 0 {
		exitf("no starting candidate provided via -q, -random-bits, or config")
	}

	reportISA()

	var q *bigmath.Int
	if dashrandombits > 0 {
		var err error
		q, err = bignum.RandomOdd(dashrandombits)
		if err != nil {
			exit(err)
		}
	} else {
		var err error
		q, err = bignum.FromHex(dashq)
		if err != nil {
			exit(err)
		}
	}
	dashcount = ints.Clamp(dashcount, 1, 1<<16)

	primeType, err := parsePrimeType(dashtype)
	if err != nil {
		exit(err)
	}
	tier, err := parseTier(dashtier)
	if err != nil {
		exit(err)
	}
	mode := sieve.NewMode(primeType, tier)

	s, err := sieve.InitState(q, mode)
	if err != nil {
		exit(err)
	}

	sessionID := uuid.New()
	fmt.Fprintf(os.Stderr, "session %s: mode=%#x tier=%s type=%s\n", sessionID, uint32(mode), dashtier, dashtype)

	out := make([]uint64, dashcount)
	start := time.Now()
	if _, err := sieve.Drive(context.Background(), s, out, dashcount); err != nil {
		exit(err)
	}
	elapsed := time.Since(start)

	for _, lsb := range out {
		fmt.Printf("%d\n", lsb)
	}

	if dashout != "" {
		if err := writeAuditRecord(dashout, sessionID, mode, out, elapsed); err != nil {
			exit(err)
		}
	}
}

// flagWasSet reports whether name was explicitly passed on the command
// line, so a config file value is only overridden when the user
// actually typed the flag (rather than always losing to its default).
func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func writeAuditRecord(path string, sessionID uuid.UUID, mode sieve.Mode, survivors []uint64, elapsed time.Duration) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log %s: %w", path, err)
	}
	defer f.Close()

	w, err := auditlog.NewWriter(f)
	if err != nil {
		return err
	}
	rec, err := auditlog.NewRecord(sessionID, mode, survivors, elapsed)
	if err != nil {
		return err
	}
	if err := w.Write(rec); err != nil {
		return err
	}
	return w.Close()
}
