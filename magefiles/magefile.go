//go:build mage

// Package main provides build targets for the gazetteer project using Mage.
//
// Usage:
//
//	mage build        Compile the gazetteer binary to bin/
//	mage install      Install gazetteer to GOPATH/bin
//	mage test:all     Run all tests
//	mage test:race    Run all tests with the race detector
//	mage test:cover   Write coverage to bin/cover.out and print the total
//	mage smoke        Build, then init and create a property in a temp dir
//	mage lint         Run go vet and golangci-lint
//	mage clean        Remove build artifacts
//	mage stats        Print Go line counts per package
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "gazetteer"
	binaryDir  = "bin"
	cmdDir     = "./cmd/gazetteer"
)

// Build compiles the gazetteer binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
