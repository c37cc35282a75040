package plugin

import (
	"context"

	"github.com/sirupsen/logrus"
	"go-sniper/models"
)

// DryRun logs the command instead of handing it to an executor.
type DryRun struct{}

func (DryRun) Name() string { return DryRunName }

func (DryRun) Launch(ctx context.Context, resultID string, d models.InvocationDescriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logrus.WithField("result", resultID).Infof("Dry run: %s", d)
	return nil
}
