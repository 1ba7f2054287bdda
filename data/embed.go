package data

import (
	_ "embed"
)

// Reference holds the provenance sources every deployment needs.
//
//go:embed seed/reference.json
var Reference []byte

// Demo holds a small compound hierarchy, users, and outputs for local stacks.
//
//go:embed seed/demo.json
var Demo []byte
