package cron

import (
	"context"
	"sync"

	cronv3 "github.com/robfig/cron/v3"

	"github.com/briefkasten-app/briefkasten/config"
	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/logger"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
)

// CronManager schedules the periodic background sync. One desktop backend
// process runs at a time, so there is no leader election, plain local mode.
type CronManager struct {
	cfg    *config.Config
	log    logger.Logger
	cron   *cronv3.Cron
	stopCh chan struct{}
	jobIDs map[string]cronv3.EntryID
	sync   interfaces.SyncService

	syncLock sync.Mutex
}

func NewCronManager(cfg *config.Config, log logger.Logger, syncService interfaces.SyncService) *CronManager {
	return &CronManager{
		cfg:    cfg,
		log:    log,
		stopCh: make(chan struct{}),
		jobIDs: make(map[string]cronv3.EntryID),
		sync:   syncService,
	}
}

// StartCron initializes and starts the cron scheduler.
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")

	cronOptions := []cronv3.Option{
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// Stop gracefully stops the cron manager and waits for running jobs.
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		<-ctx.Done()
	}
	close(cm.stopCh)
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	if cm.cfg.CronConfig.CronScheduleSync == "" {
		return
	}

	id, err := c.AddFunc(cm.cfg.CronConfig.CronScheduleSync, func() {
		cm.syncLock.Lock()
		defer cm.syncLock.Unlock()
		cm.syncAllAccounts()
	})
	if err != nil {
		cm.log.Fatalf("Could not add sync cron job: %v", err)
	}
	cm.jobIDs["sync_accounts"] = id
	cm.log.Infof("Registered account sync job with schedule: %s", cm.cfg.CronConfig.CronScheduleSync)
}

func (cm *CronManager) syncAllAccounts() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.syncAllAccounts")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	results := cm.sync.SyncAll(ctx)
	for accountID, result := range results {
		if result == nil {
			continue
		}
		if result.Success {
			cm.log.Infof("Synced account %s: %d new emails", accountID, result.EmailsSynced)
		} else {
			cm.log.Errorf("Sync failed for account %s: %s", accountID, result.Error)
		}
	}
}
