package services

import (
	"crypto/rand"
	"fmt"

	"github.com/gosimple/slug"
)

const slugSuffixLength = 8

// slugAttempts bounds how often a colliding slug is retried with a fresh
// suffix before giving up with ErrIntegrity.
const slugAttempts = 3

func randomAlphanumeric(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	bytes := make([]byte, length)
	rand.Read(bytes)
	for i, b := range bytes {
		bytes[i] = charset[int(b)%len(charset)]
	}
	return string(bytes)
}

// makeSlug builds a URL-safe slug from a name plus a random suffix, so two
// entities whose names normalize to the same base still get distinct slugs.
func makeSlug(name string) string {
	return slug.Make(fmt.Sprintf("%s %s", name, randomAlphanumeric(slugSuffixLength)))
}
