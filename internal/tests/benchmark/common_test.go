package benchmark

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/storage/memory"
)

// SessionCounts defines registry sizes for the full runs.
var SessionCounts = []int{5000, 20000, 100000, 500000}

// SmallSessionCounts for quick benchmarks.
var SmallSessionCounts = []int{1000, 5000, 10000}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func requestContext(i int) domain.RequestContext {
	return domain.RequestContext{
		IPAddress: fmt.Sprintf("10.%d.%d.%d", i>>16&0xff, i>>8&0xff, i&0xff),
		UserAgent: "BenchmarkTest/1.0",
	}
}

// prefillStore registers count sessions spread over count/5 users so no
// user hits the cap, and returns their IDs.
func prefillStore(store *memory.Store, count int) []string {
	users := count / domain.DefaultMaxSessionsPerUser
	if users == 0 {
		users = 1
	}
	ids := make([]string, count)
	for i := 0; i < count; i++ {
		id, _ := domain.NewSessionID()
		store.CreateSession(id, fmt.Sprintf("user-%d", i%users),
			domain.UserData{Role: "member"}, requestContext(i))
		ids[i] = id
	}
	return ids
}

// newNotification builds a notification for userID.
func newNotification(userID string, i int) *domain.Notification {
	now := time.Now()
	id, _ := domain.NewNotificationID(now)
	priority := domain.PriorityMedium
	if i%10 == 0 {
		priority = domain.PriorityHigh
	}
	return &domain.Notification{
		ID:        id,
		UserID:    userID,
		Type:      "proposal",
		Title:     "New proposal",
		Message:   fmt.Sprintf("Proposal #%d is open for voting", i),
		Priority:  priority,
		Metadata:  map[string]any{"proposalId": i},
		CreatedAt: now,
	}
}

// reportMemory reports heap usage as a custom metric.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.HeapAlloc)/1024/1024, prefix+"_heap_MB")
}
