package benchmark

import (
	"testing"

	"github.com/mtaadao/mtaa-realtime/internal/core/service"
	"github.com/mtaadao/mtaa-realtime/pkg/token"
)

// BenchmarkAdminKeyHash benchmarks producing security.admin_key_hash.
func BenchmarkAdminKeyHash(b *testing.B) {
	key, _ := token.GenerateAdminKey()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := token.Hash(key); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkAdminAuthenticate benchmarks the per-request admin check.
func BenchmarkAdminAuthenticate(b *testing.B) {
	key, _ := token.GenerateAdminKey()
	hash, _ := token.Hash(key)
	auth := service.NewAdminAuthenticator(hash)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if err := auth.Verify(key); err != nil {
			b.Fatal(err)
		}
	}
}
