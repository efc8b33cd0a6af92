package processor

import (
	coreAdapter "github.com/tigerroll/surfin/pkg/batch/core/adapter"
	core "github.com/tigerroll/surfin/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin/pkg/batch/core/config"
	jsl "github.com/tigerroll/surfin/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/surfin/pkg/batch/core/config/support"
	"github.com/tigerroll/surfin/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

// NewParkingTransformProcessorComponentBuilder creates a jsl.ComponentBuilder for the ParkingTransformProcessor.
func NewParkingTransformProcessorComponentBuilder() jsl.ComponentBuilder {
	return jsl.ComponentBuilder(func(
		cfg *config.Config,
		resolver core.ExpressionResolver,
		resourceProviders map[string]coreAdapter.ResourceProvider,
		properties map[string]interface{},
	) (interface{}, error) {
		return NewParkingTransformProcessor(cfg, resolver, properties)
	})
}

// RegisterParkingTransformProcessorBuilder registers the created ComponentBuilder with the JobFactory.
func RegisterParkingTransformProcessorBuilder(
	jf *support.JobFactory,
	builder jsl.ComponentBuilder,
) {
	jf.RegisterComponentBuilder("parkingTransformProcessor", builder)
	logger.Debugf("ComponentBuilder for ParkingTransformProcessor registered with JobFactory. JSL ref: 'parkingTransformProcessor'")
}

// Module defines Fx options for the parking processor component.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewParkingTransformProcessorComponentBuilder,
		fx.ResultTags(`name:"parkingTransformProcessor"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterParkingTransformProcessorBuilder,
		fx.ParamTags(``, `name:"parkingTransformProcessor"`),
	)),
)
