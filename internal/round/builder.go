package round

import (
	"context"

	"panoguess/internal/logging"
	"panoguess/internal/models"
	"panoguess/internal/pipeline"
	"panoguess/pkg/geo"
	"panoguess/pkg/mapillary"
)

// RegionSampler picks the region a round is about.
type RegionSampler interface {
	SampleCorrect() (models.Region, error)
}

// AreaLimiter shrinks a region's box to something the image API accepts.
type AreaLimiter interface {
	Limit(box geo.BoundingBox) (geo.BoundingBox, error)
}

// ImageFinder looks up one image inside a box.
type ImageFinder interface {
	FindImage(ctx context.Context, box geo.BoundingBox) (mapillary.Image, error)
}

// attempt accumulates the intermediate results of one round build.
type attempt struct {
	region models.Region
	box    geo.BoundingBox
	image  mapillary.Image
	round  models.Round
}

// Builder produces one round per call by running sample, limit, query and
// assemble stages. Any stage failure fails the whole attempt.
type Builder struct {
	pipeline *pipeline.Pipeline[attempt]
	logger   logging.Logger
}

func NewBuilder(sampler RegionSampler, limiter AreaLimiter, images ImageFinder, assembler *Assembler, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Noop()
	}
	b := &Builder{logger: logger}
	b.pipeline = pipeline.NewPipeline(
		pipeline.NewStage("sample", func(_ context.Context, a *attempt) error {
			region, err := sampler.SampleCorrect()
			a.region = region
			return err
		}),
		pipeline.NewStage("limit", func(_ context.Context, a *attempt) error {
			box, err := limiter.Limit(a.region.BBox)
			a.box = box
			return err
		}),
		pipeline.NewStage("query", func(ctx context.Context, a *attempt) error {
			b.logger.Debug(ctx, "querying images",
				logging.String("region", a.region.Code),
				logging.String("name", a.region.Name),
				logging.String("bbox", a.box.String()))
			img, err := images.FindImage(ctx, a.box)
			a.image = img
			return err
		}),
		pipeline.NewStage("assemble", func(_ context.Context, a *attempt) error {
			r, err := assembler.Assemble(a.region, a.image.ID)
			a.round = r
			return err
		}),
	)
	return b
}

// Build runs one attempt. Errors keep their sentinel identity
// (models.ErrConfiguration, geo.ErrRegionTooLarge, mapillary.Err*) so
// callers can classify them with errors.Is.
func (b *Builder) Build(ctx context.Context) (models.Round, error) {
	var a attempt
	if err := b.pipeline.Run(ctx, &a); err != nil {
		return models.Round{}, err
	}
	return a.round, nil
}
