package plugin

import "errors"

// DryRunName is the name of the plugin that only logs commands.
const DryRunName = "dry-run"

// ErrUnknownPlugin is returned when launching through a plugin that was
// never added.
var ErrUnknownPlugin = errors.New("unknown plugin")
