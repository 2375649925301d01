package jobs

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// JobUpdateCheck is the recurring sweep over tracked packages.
const JobUpdateCheck = "update-check"

// CheckResult is broadcast over the websocket hub after every sweep.
type CheckResult struct {
	Type    string `json:"type"`
	Pending int    `json:"pending_updates"`
	Error   string `json:"error,omitempty"`
}

// RegisterAll wires every known job into the manager.
func RegisterAll(jm *JobManager) {
	jm.Register(JobUpdateCheck, "Check for package updates", RunUpdateCheck)
}

// RunUpdateCheck performs one update sweep and reports the outcome to
// connected clients.
func RunUpdateCheck(ctx JobContext) {
	pending, err := ctx.Service().CheckUpdates(context.Background())
	result := CheckResult{Type: "update_check", Pending: pending}
	if err != nil {
		log.Printf("Update check failed: %v", err)
		result.Error = err.Error()
	} else {
		log.Printf("Update check complete, %d package(s) have updates", pending)
	}
	ctx.WsHub().BroadcastJSON(result)
}

// StartJobs starts the background job scheduler.
func StartJobs(app JobContext) {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	startUpdateCheckJob(s, app)

	log.Println("Starting background job scheduler...")
	s.StartAsync()
}

func startUpdateCheckJob(s *gocron.Scheduler, app JobContext) {
	interval := app.Config().CheckInterval
	if interval == 0 {
		log.Println("Update check interval is 0, scheduled checks are disabled.")
		return
	}

	log.Printf("Scheduling job: '%s' to run every %d seconds.", JobUpdateCheck, interval)

	_, err := s.Every(interval).Seconds().Do(func() {
		log.Println("Scheduler is triggering job:", JobUpdateCheck)
		// Submit the job to the manager instead of running it directly.
		// This prevents conflicts with manually triggered checks.
		err := app.JobManager().RunJob(JobUpdateCheck, app)
		if err != nil {
			log.Printf("Scheduled job '%s' could not start: %v", JobUpdateCheck, err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling '%s' job: %v", JobUpdateCheck, err)
	}
}
