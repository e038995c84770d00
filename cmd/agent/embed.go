package main

import _ "embed"

// embeddedConfig holds the YAML configuration embedded at build time.
// embed_config.yaml ships with placeholder values; deployment scripts may
// overwrite it with site settings before compiling.
//
//go:embed embed_config.yaml
var embeddedConfig []byte
