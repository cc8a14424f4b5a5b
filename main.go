package main

import (
	"github.com/readmirror/readmirror/internal/config"
	"github.com/readmirror/readmirror/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
)

func main() {
	cfg := config.NewConfig()
	entrypoint.Run(cfg, Version)
}
