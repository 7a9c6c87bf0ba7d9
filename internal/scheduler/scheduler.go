package scheduler

import (
	"fmt"

	"github.com/fvila/renovaciones/internal/alerts"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Daily owns the once-a-day deadline-scan trigger. Lifecycle is explicit:
// Start at process boot, Stop on shutdown. RunOnce is the synchronous entry
// point shared by the cron callback and the manual /tools/scan/run endpoint.
type Daily struct {
	scanner *alerts.DeadlineScanner
	log     *zap.Logger
	hour    int
	minute  int
	cron    *cron.Cron
}

func NewDaily(scanner *alerts.DeadlineScanner, hour, minute int, log *zap.Logger) *Daily {
	return &Daily{scanner: scanner, log: log, hour: hour, minute: minute}
}

// Start schedules the daily run. If today's run time has already passed the
// first run lands at that time tomorrow (standard cron semantics).
func (d *Daily) Start() error {
	if d.cron != nil {
		return nil
	}
	c := cron.New()
	spec := fmt.Sprintf("%d %d * * *", d.minute, d.hour)
	if _, err := c.AddFunc(spec, func() {
		created, err := d.RunOnce()
		if err != nil {
			d.log.Error("daily alert scan failed", zap.Error(err))
			return
		}
		d.log.Info("daily alert scan completed", zap.Int("alerts_created", created))
	}); err != nil {
		return err
	}
	c.Start()
	d.cron = c
	d.log.Info("daily alert scan scheduled", zap.String("spec", spec))
	return nil
}

// Stop cancels the timer and waits for an in-flight run to finish.
func (d *Daily) Stop() {
	if d.cron == nil {
		return
	}
	<-d.cron.Stop().Done()
	d.cron = nil
}

// RunOnce executes one scan immediately, bypassing the timer.
func (d *Daily) RunOnce() (int, error) {
	return d.scanner.Run()
}
