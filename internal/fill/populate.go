package fill

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/exa-sheets/internal/grid"
	"github.com/sells-group/exa-sheets/internal/sheetio"
)

// PopulateSheet reads the sheet at inputPath, fills every row and writes the
// result to outputPath. If ctx ends mid-fill, the partially filled sheet is
// still written and the interruption error is returned.
func PopulateSheet(ctx context.Context, f *Filler, inputPath, outputPath string) (*grid.Grid, error) {
	in, err := sheetio.Read(inputPath)
	if err != nil {
		return nil, eris.Wrapf(err, "populate: read %s", inputPath)
	}

	f.log.Info("populate: loaded input",
		zap.String("path", inputPath),
		zap.Int("rows", in.Len()),
		zap.Strings("attributes", in.Attributes()),
	)

	out, fillErr := f.FillRows(ctx, grid.NewOutput(in), in, in.Indices())

	if err := sheetio.Write(outputPath, out); err != nil {
		return out, eris.Wrapf(err, "populate: write %s", outputPath)
	}
	f.log.Info("populate: wrote output", zap.String("path", outputPath))

	return out, fillErr
}
