/*
main.go
*/

package main

import (
	"github.com/effluxlabs/efflux-vault/cmd"
	"github.com/effluxlabs/efflux-vault/pkg/logger"
	"github.com/effluxlabs/efflux-vault/pkg/telemetry"
	"go.uber.org/zap"
)

func main() {
	logger.InitializeWithFallback()

	if err := telemetry.Init("efflux-vault"); err != nil {
		logger.L().Warn("Telemetry disabled", zap.Error(err))
	}

	cmd.Execute()
}
