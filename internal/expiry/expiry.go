// Package expiry decides which products are close to their best-before
// date and pushes alerts about them.
package expiry

import (
	"fmt"
	"time"

	"github.com/larderapp/larder/internal/model"
)

// DefaultHorizonDays is how far ahead expiry alerts look. Products at or
// inside the horizon, including already expired ones, trigger alerts.
const DefaultHorizonDays = 3

// DaysUntil returns the whole-day calendar distance from now to the
// best-before date. Negative for dates in the past, zero for today.
// Both times are compared on their UTC calendar dates so the hour of the
// check does not shift the result.
func DaysUntil(now, bestBefore time.Time) int {
	a := truncateToDay(now)
	b := truncateToDay(bestBefore)
	return int(b.Sub(a).Hours() / 24)
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Expiring filters products to those within horizonDays of expiry,
// including products already past their date. Products with no
// best-before date never match.
func Expiring(products []model.Product, now time.Time, horizonDays int) []model.Product {
	var out []model.Product
	for _, p := range products {
		if p.BestBefore.IsZero() {
			continue
		}
		if DaysUntil(now, p.BestBefore) <= horizonDays {
			out = append(out, p)
		}
	}
	return out
}

// AlertBody phrases one product's expiry for a notification.
func AlertBody(p model.Product, now time.Time) string {
	days := DaysUntil(now, p.BestBefore)
	switch {
	case days < -1:
		return fmt.Sprintf("%s expired %d days ago", p.Name, -days)
	case days == -1:
		return fmt.Sprintf("%s expired yesterday", p.Name)
	case days == 0:
		return fmt.Sprintf("%s expires today", p.Name)
	case days == 1:
		return fmt.Sprintf("%s expires tomorrow", p.Name)
	default:
		return fmt.Sprintf("%s expires in %d days", p.Name, days)
	}
}
