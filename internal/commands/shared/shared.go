// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package shared carries state common to all CLI commands.
package shared

import "github.com/tombee/conduit/internal/config"

// State is populated by the root command before any subcommand runs.
type State struct {
	// Config is the loaded CLI configuration with flag overrides applied.
	Config *config.Config

	// Version metadata injected via ldflags at build time.
	Version   string
	Commit    string
	BuildDate string
}

// NewState returns a State with default configuration.
func NewState(version, commit, buildDate string) *State {
	return &State{
		Config:    config.DefaultConfig(),
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	}
}
