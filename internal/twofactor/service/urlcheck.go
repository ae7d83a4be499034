package service

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// URLChecker restricts which request URLs may carry a login attempt.
type URLChecker struct {
	urls     []string
	patterns []*regexp.Regexp
	fullURL  bool
}

// NewURLChecker compiles urls according to cfg. A nil checker with no error
// is returned when urls is empty; its Check always passes.
func NewURLChecker(urls []string, cfg URLCheckerConfig) (*URLChecker, error) {
	switch cfg.Name {
	case "", DefaultURLChecker:
	default:
		return nil, fmt.Errorf("%w: URL checker %q was not found", ErrConfiguration, cfg.Name)
	}
	if len(urls) == 0 {
		return nil, nil
	}

	c := &URLChecker{urls: slices.Clone(urls), fullURL: cfg.CheckFullURL}
	if cfg.UseRegex {
		for _, u := range urls {
			re, err := regexp.Compile(u)
			if err != nil {
				return nil, fmt.Errorf("%w: login URL pattern %q: %w", ErrConfiguration, u, err)
			}
			c.patterns = append(c.patterns, re)
		}
	}
	return c, nil
}

// Check reports whether u is an accepted login URL. On mismatch it returns
// a message naming the URL and every accepted alternative.
func (c *URLChecker) Check(u *url.URL) (bool, string) {
	if c == nil {
		return true, ""
	}

	target := c.target(u)
	if c.patterns != nil {
		for _, re := range c.patterns {
			if re.MatchString(target) {
				return true, ""
			}
		}
	} else if slices.Contains(c.urls, target) {
		return true, ""
	}

	return false, fmt.Sprintf("Login URL `%s` did not match `%s`.", target, strings.Join(c.urls, "` or `"))
}

// target is the part of u compared against the configured URLs: the path, or
// scheme://host/path in full-URL mode. The query never takes part.
func (c *URLChecker) target(u *url.URL) string {
	if u == nil {
		return ""
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if !c.fullURL {
		return path
	}

	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + u.Host + path
}
