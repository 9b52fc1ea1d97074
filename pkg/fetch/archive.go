package fetch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Sriram-PR/readerview/pkg/config"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

// NeedsArchive reports whether u's host (or a parent domain) is listed as
// blocking direct fetches.
func NeedsArchive(u *url.URL, cfg config.ArchiveConfig) bool {
	if u == nil || cfg.MirrorTemplate == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, h := range cfg.Hosts {
		h = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "www.")
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// ArchiveTarget returns the URL to fetch for u. For archived hosts that is
// the mirror's newest snapshot of u and archived is true; otherwise it is u.
func ArchiveTarget(u *url.URL, cfg config.ArchiveConfig) (target *url.URL, archived bool, err error) {
	if !NeedsArchive(u, cfg) {
		return u, false, nil
	}
	target, err = url.Parse(fmt.Sprintf(cfg.MirrorTemplate, u.String()))
	if err != nil {
		return nil, false, fmt.Errorf("%w: archive mirror URL: %v", utils.ErrBadURL, err)
	}
	return target, true, nil
}
