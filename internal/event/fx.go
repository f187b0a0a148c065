package event

import (
	"github.com/smallbiznis/invoray/internal/event/repository"
	"github.com/smallbiznis/invoray/internal/event/service"
	"go.uber.org/fx"
)

var Module = fx.Module("event.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
