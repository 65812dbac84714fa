package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/use-agent/dirscrape/models"
)

// Inject adds each cookie whose domain matches the host of the page the tab
// is currently on. Mismatched cookies are refused individually and reported
// as a joined ErrCookieDomainMismatch; a protocol failure aborts injection.
// It returns how many cookies were set.
func Inject(ctx context.Context, tab Tab, cookies []models.Cookie) (int, error) {
	current, err := tab.CurrentURL(ctx)
	if err != nil {
		return 0, fmt.Errorf("read current url: %w", err)
	}
	u, err := url.Parse(current)
	if err != nil {
		return 0, fmt.Errorf("parse current url %q: %w", current, err)
	}
	host := u.Hostname()

	var refused []error
	set := 0
	for _, c := range cookies {
		if !c.MatchesHost(host) {
			refused = append(refused, fmt.Errorf("cookie %s for %s on page %q: %w",
				c.Name, c.Domain, host, ErrCookieDomainMismatch))
			continue
		}
		if err := tab.SetCookie(ctx, c); err != nil {
			return set, fmt.Errorf("set cookie %s: %w", c.Name, err)
		}
		set++
	}
	return set, errors.Join(refused...)
}
