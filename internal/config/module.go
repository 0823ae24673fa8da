package config

import "go.uber.org/fx"

// Module provides the process Config to the fx graph. The config path is
// supplied by main via fx.Supply(Path("...")) before this module loads.
var Module = fx.Options(
	fx.Provide(NewFromPath),
)

// Path is the fx-supplied filesystem location of the config file/dir.
type Path string

// NewFromPath is the fx constructor wrapping Load.
func NewFromPath(path Path) (*Config, error) {
	return Load(string(path))
}
