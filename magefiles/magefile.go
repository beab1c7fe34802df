//go:build mage

package main

import (
	"log"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Инструменты разработки, которые ставятся через go install.
var tools = []string{
	"github.com/golangci/golangci-lint/cmd/golangci-lint@v1.52.2",
	"github.com/vektra/mockery/v2@v2.20.0",
}

func Lint() error {
	return sh.RunV("golangci-lint", "run")
}

// Generate пересоздает моки.
func Generate() error {
	return sh.RunV("go", "generate", "./...")
}

func Build() error {
	return sh.RunV("go", "build", "-o", "bin/relgraph", ".")
}

func Update() error {
	if err := sh.RunV("go", "get", "-u", "-v"); err != nil {
		return err
	}
	return sh.RunV("go", "mod", "tidy", "-v")
}

type Test mg.Namespace

func (Test) All() error {
	return sh.RunV("go", "test", "-v", "./...")
}

// Race тесты загрузчика с детектором гонок.
func (Test) Race() error {
	return sh.RunV("go", "test", "-race", "./parse/...")
}

func (Test) Cover() error {
	if err := sh.RunV("go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func=coverage.out")
}

type Tools mg.Namespace

func (Tools) Install() error {
	log.Println("tools: ", tools)

	for _, tool := range tools {
		if err := sh.RunV("go", "install", "-v", tool); err != nil {
			return err
		}
	}
	return nil
}
