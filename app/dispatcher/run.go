package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/waxal-io/waxal/app/services"
	"github.com/waxal-io/waxal/models"
	"github.com/waxal-io/waxal/utils"
)

// sendOutcome pairs one recipient record with its transport result
type sendOutcome struct {
	msg *models.Message
	res services.SendResult
}

// runLoop drains the campaign's pending records batch by batch. Stop requests
// are honored between batches only; a claimed batch always completes and its
// results are recorded before the loop exits.
func (e *EngineImpl) runLoop(r *run) {
	job := r.job
	ctx := context.Background()
	limiter := newRateLimiter(e.cfg.SendRate)

	defer func() {
		limiter.Stop()
		if err := e.campaignRepo.SyncRates(ctx, job.CampaignID); err != nil {
			e.logger.Printf("campaign %d (%s): failed to sync rates: %v", job.CampaignID, job.BulkID, err)
		}
		if err := e.campaignRepo.ReleaseDispatch(ctx, job.CampaignID); err != nil {
			e.logger.Printf("campaign %d (%s): failed to release claim: %v", job.CampaignID, job.BulkID, err)
		}
		e.releaseLock(ctx, job.CampaignID)
		e.mu.Lock()
		delete(e.runs, job.CampaignID)
		e.mu.Unlock()
		close(r.done)
		activeCampaigns.Dec()
		e.wg.Done()
	}()

	e.logger.Printf("campaign %d (%s): dispatch started, channel=%s test=%v", job.CampaignID, job.BulkID, job.Channel, job.IsTest)

	for {
		if r.stopped() {
			e.logger.Printf("campaign %d (%s): stop requested, ceasing batch claims", job.CampaignID, job.BulkID)
			return
		}

		batch, err := e.messageRepo.PendingBatch(ctx, job.BulkID, e.cfg.BatchSize)
		if err != nil {
			e.logger.Printf("campaign %d (%s): failed to fetch pending batch, aborting: %v", job.CampaignID, job.BulkID, err)
			return
		}
		if len(batch) == 0 {
			e.finalize(ctx, job)
			return
		}

		e.processBatch(ctx, r, batch, limiter)

		if err := e.campaignRepo.SyncRates(ctx, job.CampaignID); err != nil {
			e.logger.Printf("campaign %d (%s): failed to sync rates: %v", job.CampaignID, job.BulkID, err)
		}
	}
}

// processBatch fans the batch out to the worker pool and collects every result
// on this goroutine, the single writer of the campaign's counters.
func (e *EngineImpl) processBatch(ctx context.Context, r *run, batch []*models.Message, limiter *rateLimiter) {
	job := r.job

	workers := e.cfg.WorkerCount
	if workers > len(batch) {
		workers = len(batch)
	}

	feed := make(chan *models.Message)
	results := make(chan sendOutcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range feed {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				results <- sendOutcome{msg: msg, res: e.send(ctx, job, msg)}
			}
		}()
	}

	go func() {
		defer close(feed)
		for _, msg := range batch {
			feed <- msg
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for out := range results {
		e.applyOutcome(ctx, job, out)
	}
}

// send performs one transport call with a bounded timeout. Test dispatches
// never touch the transport.
func (e *EngineImpl) send(ctx context.Context, job Job, msg *models.Message) services.SendResult {
	if job.IsTest {
		return services.SendResult{Success: true, MessageID: fmt.Sprintf("test-%d", msg.ID)}
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout)
	defer cancel()

	start := time.Now()
	var res services.SendResult
	switch job.Channel {
	case models.ChannelWhatsApp:
		res = e.transport.SendWhatsApp(sendCtx, msg.Receiver, job.TemplateName, job.Variables, job.OwnerLogin)
	default:
		res = e.transport.SendSMS(sendCtx, job.SenderLogin, msg.Receiver, msg.Body)
	}
	sendDuration.WithLabelValues(job.Channel.String()).Observe(time.Since(start).Seconds())

	return res
}

// applyOutcome records one result. A MarkSent failure downgrades the record
// to failed while the row is still pending; once the row is marked sent, a
// counter error is retried rather than downgraded so the counters never
// contradict the row.
func (e *EngineImpl) applyOutcome(ctx context.Context, job Job, out sendOutcome) {
	if !out.res.Success {
		reason := out.res.Error
		if reason == "" {
			reason = "send failed"
		}
		e.recordFailure(ctx, job, out.msg, reason)
		return
	}

	if err := e.messageRepo.MarkSent(ctx, out.msg.ID, out.res.MessageID); err != nil {
		e.logger.Printf("campaign %d (%s): failed to mark message %d sent: %v", job.CampaignID, job.BulkID, out.msg.ID, err)
		e.recordFailure(ctx, job, out.msg, "internal: "+err.Error())
		return
	}
	e.recordSuccess(ctx, job, out.msg)
}

func (e *EngineImpl) recordSuccess(ctx context.Context, job Job, msg *models.Message) {
	if err := e.campaignRepo.ApplyResult(ctx, job.CampaignID, true, 1); err != nil {
		e.logger.Printf("campaign %d (%s): failed to apply success counters for message %d, retrying: %v", job.CampaignID, job.BulkID, msg.ID, err)
		if err := e.campaignRepo.ApplyResult(ctx, job.CampaignID, true, 1); err != nil {
			e.logger.Printf("campaign %d (%s): success counters for message %d not applied: %v", job.CampaignID, job.BulkID, msg.ID, err)
		}
	}

	if !job.IsTest {
		qty := int64(1)
		if e.cfg.QuotaBySegments && msg.TotalMessage > 1 {
			qty = int64(msg.TotalMessage)
		}
		if err := e.subscriptionRepo.DecrementCredit(ctx, job.CustomerID, job.Channel, qty); err != nil {
			e.logger.Printf("campaign %d (%s): failed to decrement quota for customer %d: %v", job.CampaignID, job.BulkID, job.CustomerID, err)
		}
	}

	messagesSentTotal.WithLabelValues(job.Channel.String(), fmt.Sprintf("%v", job.IsTest)).Inc()
}

func (e *EngineImpl) recordFailure(ctx context.Context, job Job, msg *models.Message, reason string) {
	if err := e.messageRepo.MarkFailed(ctx, msg.ID, reason); err != nil {
		e.logger.Printf("campaign %d (%s): failed to record failure for message %d: %v", job.CampaignID, job.BulkID, msg.ID, err)
		return
	}
	if err := e.campaignRepo.ApplyResult(ctx, job.CampaignID, false, 1); err != nil {
		e.logger.Printf("campaign %d (%s): failed to apply failure counters for message %d: %v", job.CampaignID, job.BulkID, msg.ID, err)
	}
	messagesFailedTotal.WithLabelValues(job.Channel.String()).Inc()
}

// finalize runs when no pending records remain: the terminal is_sent flag
// reflects whether every recipient was delivered.
func (e *EngineImpl) finalize(ctx context.Context, job Job) {
	hasFailed, err := e.messageRepo.HasFailed(ctx, job.BulkID)
	if err != nil {
		e.logger.Printf("campaign %d (%s): failed to check for failures: %v", job.CampaignID, job.BulkID, err)
		return
	}
	if err := e.campaignRepo.SetIsSent(ctx, job.CampaignID, utils.ToPtr(!hasFailed)); err != nil {
		e.logger.Printf("campaign %d (%s): failed to set terminal flag: %v", job.CampaignID, job.BulkID, err)
	}
	e.logger.Printf("campaign %d (%s): dispatch complete, all_delivered=%v", job.CampaignID, job.BulkID, !hasFailed)
}
