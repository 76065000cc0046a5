package cmd

import (
	_ "embed"
	"strings"
)

//go:embed version.txt
var rawVersion string

var version = strings.TrimSpace(rawVersion)
