// Package configs provides embedded configuration templates for codesem.
//
// How Configuration Templates Work:
//
// Templates are embedded at build time using Go's //go:embed directive.
// This ensures they are available in ALL distributions:
//   - Source builds (go install)
//   - Binary releases
//   - Homebrew installations
//
// The templates are used by:
//   - cmd/codesem/cmd/config.go → creates user config at ~/.config/codesem/config.yaml
//
// Template files:
//   - project-config.example.yaml: Project-specific settings (enabled, gpu_embeddings)
//   - user-config.example.yaml: Machine-specific settings (gpu_embeddings)
//
// Configuration Hierarchy (see internal/config/config.go Load()):
//   1. Hardcoded defaults (internal/config/config.go NewConfig())
//   2. User config (~/.config/codesem/config.yaml)
//   3. Project config (.codesem.yaml)
//   4. Environment variables (CODESEM_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
// Changes will be embedded in the next build.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by: `codesem config init` at ~/.config/codesem/config.yaml
// Use case: Settings that apply to all projects on this machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration,
// checked in at .codesem.yaml in a project root.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
