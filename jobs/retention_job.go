package jobs

import (
	"context"
	"log"
	"time"

	"github.com/anjiri1684/private_messages/services"
	"github.com/robfig/cron/v3"
)

// Purger is the part of the message service the retention job needs.
type Purger interface {
	PurgeDeleted(ctx context.Context, maxAge time.Duration, dryRun bool) (int64, error)
}

var _ Purger = (*services.MessageService)(nil)

// PurgeDeletedMessages removes messages both parties deleted more than maxAge
// ago.
func PurgeDeletedMessages(p Purger, maxAge time.Duration, dryRun bool) func() {
	return func() {
		log.Println("Running job: PurgeDeletedMessages...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		count, err := p.PurgeDeleted(ctx, maxAge, dryRun)
		if err != nil {
			log.Printf("Error purging deleted messages: %v", err)
			return
		}

		if dryRun {
			log.Printf("Total count of messages to be deleted: %d", count)
			return
		}
		if count == 0 {
			log.Println("No deleted messages old enough to purge.")
			return
		}
		log.Printf("Purged %d message(s) deleted by both parties.", count)
	}
}

// Schedule registers the retention job on c.
func Schedule(c *cron.Cron, schedule string, p Purger, maxAge time.Duration) (cron.EntryID, error) {
	return c.AddFunc(schedule, PurgeDeletedMessages(p, maxAge, false))
}
