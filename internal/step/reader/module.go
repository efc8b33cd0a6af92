package reader

import (
	coreAdapter "github.com/tigerroll/surfin/pkg/batch/core/adapter"
	core "github.com/tigerroll/surfin/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin/pkg/batch/core/config"
	jsl "github.com/tigerroll/surfin/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/surfin/pkg/batch/core/config/support"
	"github.com/tigerroll/surfin/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

// NewParkingAPIReaderComponentBuilder creates a jsl.ComponentBuilder for the ParkingAPIReader.
func NewParkingAPIReaderComponentBuilder() jsl.ComponentBuilder {
	return jsl.ComponentBuilder(func(
		cfg *config.Config,
		resolver core.ExpressionResolver,
		resourceProviders map[string]coreAdapter.ResourceProvider,
		properties map[string]interface{},
	) (interface{}, error) {
		return NewParkingAPIReader(cfg, resolver, resourceProviders, properties)
	})
}

// RegisterParkingAPIReaderBuilder registers the created ComponentBuilder with the JobFactory.
func RegisterParkingAPIReaderBuilder(
	jf *support.JobFactory,
	builder jsl.ComponentBuilder,
) {
	// The key must match the 'ref' in JSL (job.yaml).
	jf.RegisterComponentBuilder("parkingItemReader", builder)
	logger.Debugf("ComponentBuilder for ParkingAPIReader registered with JobFactory. JSL ref: 'parkingItemReader'")
}

// Module defines Fx options for the parking reader component.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewParkingAPIReaderComponentBuilder,
		fx.ResultTags(`name:"parkingItemReader"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterParkingAPIReaderBuilder,
		fx.ParamTags(``, `name:"parkingItemReader"`),
	)),
)
