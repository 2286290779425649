package cmd

import (
	"log/slog"

	"github.com/vantagecrm/leadflow/pkg/executors/email"
	"github.com/vantagecrm/leadflow/pkg/executors/httprequest"
	logexecutor "github.com/vantagecrm/leadflow/pkg/executors/log"
	"github.com/vantagecrm/leadflow/pkg/executors/sms"
	"github.com/vantagecrm/leadflow/pkg/registry"
)

// NewRegistry builds the executor registry with the built-in executors.
// SMS and email use log-only senders unless real providers are injected.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterExecutor(logexecutor.NewFactory())
	reg.RegisterExecutor(httprequest.NewFactory())
	reg.RegisterExecutor(sms.NewFactory(nil))
	reg.RegisterExecutor(email.NewFactory(nil))

	return reg
}
