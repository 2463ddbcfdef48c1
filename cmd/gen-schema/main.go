// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

// Command gen-schema writes the config file JSON Schema.
//
// Usage: gen-schema [OUTPUT]. OUTPUT defaults to schemas/config.schema.json;
// "-" writes to stdout.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/coursebook/coursebook/internal/config"
)

const defaultOutput = "schemas/config.schema.json"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) > 1 {
		return oops.Code("USAGE").Errorf("usage: gen-schema [OUTPUT]")
	}
	outPath := defaultOutput
	if len(args) == 1 {
		outPath = args[0]
	}

	schema, err := config.GenerateSchema()
	if err != nil {
		return err
	}
	schema = append(schema, '\n')

	if outPath == "-" {
		_, err := stdout.Write(schema)
		return oops.Code("SCHEMA_WRITE_FAILED").Wrap(err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", outPath).Wrap(err)
	}
	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", outPath).Wrap(err)
	}
	fmt.Fprintf(stdout, "Generated %s\n", outPath)
	return nil
}
