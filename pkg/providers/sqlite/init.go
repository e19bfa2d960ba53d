package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/leapconn/pkg/provider"
)

func init() {
	provider.Register(Name, func(logger *slog.Logger) provider.Provider { return New(logger) })
}
