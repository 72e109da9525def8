//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the poe project using Mage.
//
// Usage:
//
//	mage build          Compile the poe binary to bin/
//	mage install        Install poe to GOPATH/bin
//	mage clean          Remove build artifacts
//	mage lint           Run golangci-lint
//	mage test:all       Run all tests
//	mage test:race      Run all tests with the race detector
//	mage test:cover     Write a coverage profile to bin/coverage.out
//	mage test:smoke     Build, then run poe against the testdata projects
package main

import (
	"fmt"
	"os"
	"strings"
)

// logf prints a build progress line.
func logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "mage: "+format+"\n", args...)
}

// gitVersion describes HEAD for the version stamp, or "dev" outside a
// git checkout.
func gitVersion() string {
	out, err := shOutput("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || strings.TrimSpace(out) == "" {
		return "dev"
	}
	return strings.TrimSpace(out)
}
