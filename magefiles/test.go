//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets.
type Test mg.Namespace

// All runs all tests.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs all tests with the race detector.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover writes a coverage profile to bin/coverage.out and prints the
// per-function summary.
func (Test) Cover() error {
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV(binGo, "test", "-coverprofile="+profile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func="+profile)
}

// smokeCase is one invocation of the built binary and a line its stderr
// must contain.
type smokeCase struct {
	args []string
	want string
}

var smokeCases = []smokeCase{
	{args: []string{"--root", "testdata/projects/includes"}, want: "CONFIGURED TASKS"},
	{args: []string{"--root", "testdata/projects/includes", "--dry-run", "greet", "Whirl!"}, want: "Poe => poe_test_echo Hello 'Whirl!'"},
	{args: []string{"--root", "testdata/projects/monorepo/subproject_2", "add"}, want: "Poe => 1 + 1"},
}

// Smoke builds the binary and runs it against the testdata projects.
func (Test) Smoke() error {
	mg.Deps(Build)
	bin := filepath.Join(binaryDir, binaryName)
	for _, c := range smokeCases {
		var stdout, stderr bytes.Buffer
		cmdline := "poe " + strings.Join(c.args, " ")
		if _, err := sh.Exec(nil, &stdout, &stderr, bin, c.args...); err != nil {
			return fmt.Errorf("%s: %w\n%s", cmdline, err, stderr.String())
		}
		if !strings.Contains(stderr.String(), c.want) {
			return fmt.Errorf("%s: stderr does not contain %q:\n%s", cmdline, c.want, stderr.String())
		}
		logf("%s: ok", cmdline)
	}
	return nil
}
