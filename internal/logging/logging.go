// pattern: Imperative Shell
package logging

import (
	"go.uber.org/zap"
)

// New builds the process logger. The default production config emits
// JSON records at info level; verbose switches to the development
// console encoder at debug level. Both paths write to stderr, keeping
// stdout free for command output.
func New(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config = zap.NewDevelopmentConfig()
	}
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	return config.Build()
}
