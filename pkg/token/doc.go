// Package token generates random secrets and hashes them with Argon2id.
//
// Admin API keys are generated here, stored only as an encoded hash:
//
//	$argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>
//
// Salt and hash are unpadded standard Base64. Verification recomputes the
// hash with the stored salt and compares in constant time.
package token
