package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/mtaadao/mtaa-realtime/internal/realtime"
	"github.com/mtaadao/mtaa-realtime/internal/storage"
	"github.com/mtaadao/mtaa-realtime/internal/storage/inbox"
)

// BenchmarkHubDeliver benchmarks fan-out to a user's live connections.
// Consumers drain each queue so sends never drop.
func BenchmarkHubDeliver(b *testing.B) {
	for _, conns := range []int{1, 5} {
		b.Run(fmt.Sprintf("conns_%d", conns), func(b *testing.B) {
			hub := realtime.NewHub(realtime.WithLogger(quiet), realtime.WithQueueSize(1024))
			defer hub.Close()

			for i := 0; i < conns; i++ {
				c, err := hub.Register(realtime.ChannelWebSocket)
				if err != nil {
					b.Fatal(err)
				}
				if err := hub.Authenticate(c.ID(), "bench-user"); err != nil {
					b.Fatal(err)
				}
				go func() {
					for {
						select {
						case <-c.Messages():
						case <-c.Done():
							return
						}
					}
				}()
			}

			n := newNotification("bench-user", 0)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				hub.Deliver("bench-user", n)
			}
		})
	}
}

// BenchmarkInboxSave benchmarks persisting notifications with pruning.
func BenchmarkInboxSave(b *testing.B) {
	kv, err := storage.NewBadgerEngine(storage.InMemoryKVConfig(), quiet)
	if err != nil {
		b.Fatal(err)
	}
	defer kv.Close()

	store := inbox.New(kv, inbox.WithMaxPerUser(500), inbox.WithLogger(quiet))
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if err := store.Save(ctx, newNotification(fmt.Sprintf("user-%d", i%100), i)); err != nil {
			b.Fatalf("Save: %v", err)
		}
	}
}

// BenchmarkInboxList benchmarks reading a full inbox newest-first.
func BenchmarkInboxList(b *testing.B) {
	kv, err := storage.NewBadgerEngine(storage.InMemoryKVConfig(), quiet)
	if err != nil {
		b.Fatal(err)
	}
	defer kv.Close()

	store := inbox.New(kv, inbox.WithMaxPerUser(500), inbox.WithLogger(quiet))
	ctx := context.Background()
	for i := 0; i < 500; i++ {
		store.Save(ctx, newNotification("reader", i))
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := store.List(ctx, "reader", "", 50); err != nil {
			b.Fatalf("List: %v", err)
		}
	}
}
