package job

import (
	support "github.com/tigerroll/surfin/pkg/batch/core/config/support"
	"go.uber.org/fx"
)

// RegisterParkingJobBuilder registers the builder for the 'parkingJob' with the JobFactory.
func RegisterParkingJobBuilder(
	jf *support.JobFactory,
	builder support.JobBuilder,
) {
	// The key "parkingJob" must match the job ID in the JSL file (job.yaml).
	jf.RegisterJobBuilder("parkingJob", builder)
}

var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewParkingJobBuilder,
		fx.ResultTags(`name:"parkingJobBuilder"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterParkingJobBuilder,
		fx.ParamTags(``, `name:"parkingJobBuilder"`),
	)),
)
