package service

import "context"

// PollJob adapts the poller to the scheduler.
type PollJob struct {
	poller   PollerService
	schedule string
}

func NewPollJob(poller PollerService, schedule string) *PollJob {
	return &PollJob{poller: poller, schedule: schedule}
}

func (j *PollJob) GetName() string { return "post-tracker" }

func (j *PollJob) GetSchedule() string { return j.schedule }

func (j *PollJob) Execute(ctx context.Context) error {
	_, err := j.poller.Run(ctx)
	return err
}
