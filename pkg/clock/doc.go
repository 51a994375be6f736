// Package clock provides the time source used by stateful components.
//
// Components that expire records take a Clock instead of calling time.Now
// directly, so tests can move time forward deterministically with Fake.
package clock
