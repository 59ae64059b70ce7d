// Package config holds the top-level command line of airmouse.
package config

import "github.com/Alia5/airmouse/internal/cmd"

// CLI is the kong root.
type CLI struct {
	ConfigFile string        `name:"config" help:"Config file (json, yaml or toml)" env:"AIRMOUSE_CONFIG"`
	Log        cmd.LogConfig `embed:"" prefix:"log."`

	Run      cmd.Run           `cmd:"" help:"Run the air mouse"`
	Slots    cmd.Slots         `cmd:"" help:"Inspect or edit the stored pairing slots"`
	Identity cmd.Identity      `cmd:"" help:"Print the identity advertised for every slot"`
	Scenario cmd.Scenario      `cmd:"" help:"Replay a scripted scenario against the simulated radio"`
	Config   cmd.ConfigCommand `cmd:"" help:"Configuration helpers"`
}
