package writer

import (
	coreAdapter "github.com/tigerroll/surfin/pkg/batch/core/adapter"
	core "github.com/tigerroll/surfin/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin/pkg/batch/core/config"
	jsl "github.com/tigerroll/surfin/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/surfin/pkg/batch/core/config/support"
	"github.com/tigerroll/surfin/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

// NewParkingTableStagingWriterComponentBuilder creates a jsl.ComponentBuilder for the ParkingTableStagingWriter.
func NewParkingTableStagingWriterComponentBuilder() jsl.ComponentBuilder {
	return jsl.ComponentBuilder(func(
		cfg *config.Config,
		resolver core.ExpressionResolver,
		resourceProviders map[string]coreAdapter.ResourceProvider,
		properties map[string]interface{},
	) (interface{}, error) {
		return NewParkingTableStagingWriter(cfg, properties)
	})
}

// RegisterParkingTableStagingWriterBuilder registers the created ComponentBuilder with the JobFactory.
func RegisterParkingTableStagingWriterBuilder(
	jf *support.JobFactory,
	builder jsl.ComponentBuilder,
) {
	jf.RegisterComponentBuilder("parkingTableStagingWriter", builder)
	logger.Debugf("ComponentBuilder for ParkingTableStagingWriter registered with JobFactory. JSL ref: 'parkingTableStagingWriter'")
}

// Module defines Fx options for the parking staging writer component.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewParkingTableStagingWriterComponentBuilder,
		fx.ResultTags(`name:"parkingTableStagingWriter"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterParkingTableStagingWriterBuilder,
		fx.ParamTags(``, `name:"parkingTableStagingWriter"`),
	)),
)
