package service

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/morinoya/order-api/internal/enum"
)

const shortCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NextOrderNumber produces a candidate human-facing order number: a date
// prefix plus a random suffix. Uniqueness is enforced by the database; the
// caller retries with a fresh candidate on collision. The suffix space
// (10^4 or 36^6) keeps collisions rare enough that retrying beats running a
// centralized counter.
func NextOrderNumber(format string) string {
	return nextOrderNumberAt(format, time.Now())
}

func nextOrderNumberAt(format string, now time.Time) string {
	date := now.Format("20060102")
	switch format {
	case enum.OrderNoFormatShort:
		code := make([]byte, 6)
		for i := range code {
			code[i] = shortCodeAlphabet[rand.IntN(len(shortCodeAlphabet))]
		}
		return fmt.Sprintf("ORD-%s-%s", date, code)
	default:
		return fmt.Sprintf("%s-%04d", date, rand.IntN(10000))
	}
}
