package background

import (
	"context"
	"log"
	"sync"
	"time"

	"propledger/internal/models"
	"propledger/internal/services"

	"github.com/go-co-op/gocron/v2"
)

// stalePaymentAge is how long a tranche may sit pending before the sweep
// cancels it system-side. The buyer can always resubmit.
const stalePaymentAge = 14 * 24 * time.Hour

// JobScheduler runs the periodic ledger sweeps. Both sweeps are idempotent:
// every expiry or cancellation is a per-row CAS, so overlapping runs are
// harmless.
type JobScheduler struct {
	scheduler  gocron.Scheduler
	offerSvc   services.OfferServiceInterface
	paymentSvc services.PaymentServiceInterface
	invoiceSvc services.InvoiceServiceInterface
	jobs       map[string]gocron.Job
	mu         sync.RWMutex
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(offerSvc services.OfferServiceInterface, paymentSvc services.PaymentServiceInterface, invoiceSvc services.InvoiceServiceInterface, sweepInterval time.Duration) *JobScheduler {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	js := &JobScheduler{
		scheduler:  scheduler,
		offerSvc:   offerSvc,
		paymentSvc: paymentSvc,
		invoiceSvc: invoiceSvc,
		jobs:       make(map[string]gocron.Job),
	}

	js.registerJobs(sweepInterval)

	return js
}

// Start starts the job scheduler
func (js *JobScheduler) Start() error {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
	return nil
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// registerJobs registers all background sweeps
func (js *JobScheduler) registerJobs(sweepInterval time.Duration) {
	js.mu.Lock()
	defer js.mu.Unlock()

	expiryJob, err := js.scheduler.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(js.expireOffers),
		gocron.WithName("offer-expiry-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create offer expiry job: %v", err)
	} else {
		js.jobs["offer-expiry"] = expiryJob
	}

	staleJob, err := js.scheduler.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(js.cancelStalePayments),
		gocron.WithName("stale-payment-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create stale payment job: %v", err)
	} else {
		js.jobs["stale-payments"] = staleJob
	}

	reconcileJob, err := js.scheduler.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(js.reconcileInvoices),
		gocron.WithName("invoice-reconcile-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create invoice reconcile job: %v", err)
	} else {
		js.jobs["invoice-reconcile"] = reconcileJob
	}

	log.Printf("Registered %d background jobs", len(js.jobs))
}

func (js *JobScheduler) expireOffers() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	expired, err := js.offerSvc.ExpireDue(ctx, time.Now())
	if err != nil {
		log.Printf("Offer expiry sweep failed: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("Offer expiry sweep: %d offers expired", expired)
	}
}

// reconcileInvoices repairs approved offers whose invoice creation was lost
// (for example a crash between commit and cache invalidation, or manual data
// surgery). EnsureForOffer treats an existing invoice as success, so the
// sweep is idempotent.
func (js *JobScheduler) reconcileInvoices() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	const pageSize = 200
	repaired := 0
	for offset := 0; ; offset += pageSize {
		offers, err := js.offerSvc.List(ctx, models.OfferStatusApproved, pageSize, offset)
		if err != nil {
			log.Printf("Invoice reconcile sweep failed listing offers: %v", err)
			return
		}
		for _, offer := range offers {
			if _, err := js.invoiceSvc.EnsureForOffer(ctx, offer.ID); err != nil {
				log.Printf("Invoice reconcile failed for offer %s: %v", offer.ID, err)
				continue
			}
			repaired++
		}
		if len(offers) < pageSize {
			break
		}
	}
	if repaired > 0 {
		log.Printf("Invoice reconcile sweep: %d approved offers checked", repaired)
	}
}

func (js *JobScheduler) cancelStalePayments() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cancelled, err := js.paymentSvc.CancelStale(ctx, time.Now().Add(-stalePaymentAge))
	if err != nil {
		log.Printf("Stale payment sweep failed: %v", err)
		return
	}
	if cancelled > 0 {
		log.Printf("Stale payment sweep: %d payments cancelled", cancelled)
	}
}
