package tasklet

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin/pkg/batch/adapter/database"
	"github.com/tigerroll/surfin/pkg/batch/adapter/storage"
	genericTasklet "github.com/tigerroll/surfin/pkg/batch/component/tasklet/generic"
	coreAdapter "github.com/tigerroll/surfin/pkg/batch/core/adapter"
	core "github.com/tigerroll/surfin/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin/pkg/batch/core/config"
	jsl "github.com/tigerroll/surfin/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/surfin/pkg/batch/core/config/support"
	"github.com/tigerroll/surfin/pkg/batch/support/util/logger"

	entity "github.com/tigerroll/parking-pipeline/internal/domain/entity"
)

// NewAPIAvailabilityTaskletComponentBuilder creates a jsl.ComponentBuilder for the APIAvailabilityTasklet.
func NewAPIAvailabilityTaskletComponentBuilder() jsl.ComponentBuilder {
	return jsl.ComponentBuilder(func(
		cfg *config.Config,
		resolver core.ExpressionResolver,
		resourceProviders map[string]coreAdapter.ResourceProvider,
		properties map[string]interface{},
	) (interface{}, error) {
		return NewAPIAvailabilityTasklet(properties)
	})
}

// DBResolverComponentBuilderParams carries the DBConnectionResolver into
// builders whose tasklets talk to a database.
type DBResolverComponentBuilderParams struct {
	fx.In
	DBResolver database.DBConnectionResolver
}

// NewSchemaInitTaskletComponentBuilder creates a jsl.ComponentBuilder for the SchemaInitTasklet.
func NewSchemaInitTaskletComponentBuilder(p DBResolverComponentBuilderParams) jsl.ComponentBuilder {
	return jsl.ComponentBuilder(func(
		cfg *config.Config,
		resolver core.ExpressionResolver,
		resourceProviders map[string]coreAdapter.ResourceProvider,
		properties map[string]interface{},
	) (interface{}, error) {
		return NewSchemaInitTasklet(p.DBResolver, properties)
	})
}

// NewCSVStoreTaskletComponentBuilder creates a jsl.ComponentBuilder for the CSVStoreTasklet.
func NewCSVStoreTaskletComponentBuilder() jsl.ComponentBuilder {
	return jsl.ComponentBuilder(func(
		cfg *config.Config,
		resolver core.ExpressionResolver,
		resourceProviders map[string]coreAdapter.ResourceProvider,
		properties map[string]interface{},
	) (interface{}, error) {
		return NewCSVStoreTasklet(properties)
	})
}

// NewJSONStoreTaskletComponentBuilder creates a jsl.ComponentBuilder for the JSONStoreTasklet.
func NewJSONStoreTaskletComponentBuilder() jsl.ComponentBuilder {
	return jsl.ComponentBuilder(func(
		cfg *config.Config,
		resolver core.ExpressionResolver,
		resourceProviders map[string]coreAdapter.ResourceProvider,
		properties map[string]interface{},
	) (interface{}, error) {
		return NewJSONStoreTasklet(properties)
	})
}

// NewBypassTaskletComponentBuilder creates a jsl.ComponentBuilder for the BypassTasklet.
func NewBypassTaskletComponentBuilder() jsl.ComponentBuilder {
	return jsl.ComponentBuilder(func(
		cfg *config.Config,
		resolver core.ExpressionResolver,
		resourceProviders map[string]coreAdapter.ResourceProvider,
		properties map[string]interface{},
	) (interface{}, error) {
		return NewBypassTasklet(), nil
	})
}

// NewCopyLoadTaskletComponentBuilder creates a jsl.ComponentBuilder for the CopyLoadTasklet.
func NewCopyLoadTaskletComponentBuilder(p DBResolverComponentBuilderParams) jsl.ComponentBuilder {
	return jsl.ComponentBuilder(func(
		cfg *config.Config,
		resolver core.ExpressionResolver,
		resourceProviders map[string]coreAdapter.ResourceProvider,
		properties map[string]interface{},
	) (interface{}, error) {
		return NewCopyLoadTasklet(p.DBResolver, properties)
	})
}

// NewParkingArchiveExportTaskletBuilderParams defines the dependencies for NewParkingArchiveExportTaskletBuilder.
type NewParkingArchiveExportTaskletBuilderParams struct {
	fx.In
	DBConnectionResolver      database.DBConnectionResolver
	StorageConnectionResolver storage.StorageConnectionResolver
}

// NewParkingArchiveExportTaskletBuilder creates a JSL ComponentBuilder that
// exports the loaded parking_data rows to Parquet through the framework's
// generic export tasklet. The prototype instance drives schema reflection.
func NewParkingArchiveExportTaskletBuilder(params NewParkingArchiveExportTaskletBuilderParams) jsl.ComponentBuilder {
	return genericTasklet.NewGenericParquetExportTaskletBuilder[entity.ParkingTransaction](
		params.DBConnectionResolver,
		params.StorageConnectionResolver,
		&entity.ParkingTransaction{},
	)
}

// RegisterParkingTaskletBuilders registers every tasklet builder with the
// JobFactory. The keys must match the 'ref' values in job.yaml.
func RegisterParkingTaskletBuilders(
	jf *support.JobFactory,
	apiAvailability jsl.ComponentBuilder,
	schemaInit jsl.ComponentBuilder,
	csvStore jsl.ComponentBuilder,
	jsonStore jsl.ComponentBuilder,
	bypass jsl.ComponentBuilder,
	copyLoad jsl.ComponentBuilder,
	archiveExport jsl.ComponentBuilder,
) {
	jf.RegisterComponentBuilder("apiAvailabilityTasklet", apiAvailability)
	jf.RegisterComponentBuilder("schemaInitTasklet", schemaInit)
	jf.RegisterComponentBuilder("csvExportTasklet", csvStore)
	jf.RegisterComponentBuilder("jsonExportTasklet", jsonStore)
	jf.RegisterComponentBuilder("bypassTasklet", bypass)
	jf.RegisterComponentBuilder("copyLoadTasklet", copyLoad)
	jf.RegisterComponentBuilder("parkingArchiveExportTasklet", archiveExport)
	logger.Debugf("Parking tasklet ComponentBuilders registered with JobFactory.")
}

// Module defines the Fx options for the parking tasklet components.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewAPIAvailabilityTaskletComponentBuilder,
		fx.ResultTags(`name:"apiAvailabilityTasklet"`),
	)),
	fx.Provide(fx.Annotate(
		NewSchemaInitTaskletComponentBuilder,
		fx.ResultTags(`name:"schemaInitTasklet"`),
	)),
	fx.Provide(fx.Annotate(
		NewCSVStoreTaskletComponentBuilder,
		fx.ResultTags(`name:"csvExportTasklet"`),
	)),
	fx.Provide(fx.Annotate(
		NewJSONStoreTaskletComponentBuilder,
		fx.ResultTags(`name:"jsonExportTasklet"`),
	)),
	fx.Provide(fx.Annotate(
		NewBypassTaskletComponentBuilder,
		fx.ResultTags(`name:"bypassTasklet"`),
	)),
	fx.Provide(fx.Annotate(
		NewCopyLoadTaskletComponentBuilder,
		fx.ResultTags(`name:"copyLoadTasklet"`),
	)),
	fx.Provide(fx.Annotate(
		NewParkingArchiveExportTaskletBuilder,
		fx.ResultTags(`name:"parkingArchiveExportTasklet"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterParkingTaskletBuilders,
		fx.ParamTags(
			``,
			`name:"apiAvailabilityTasklet"`,
			`name:"schemaInitTasklet"`,
			`name:"csvExportTasklet"`,
			`name:"jsonExportTasklet"`,
			`name:"bypassTasklet"`,
			`name:"copyLoadTasklet"`,
			`name:"parkingArchiveExportTasklet"`,
		),
	)),
)
