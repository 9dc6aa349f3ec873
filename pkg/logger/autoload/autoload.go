// Package autoload initializes the global zerolog logger from LOG_* env vars
// when imported for side effects.
package autoload

import (
	configx "github.com/oakline/supportflow/pkg/config"
	logx "github.com/oakline/supportflow/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*cfg)
}
