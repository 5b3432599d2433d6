package probe

import "sync"

// Environment is the port through which the host describes the current page.
// A browser build backs it with navigator/location/document; native hosts and
// tests use Static.
type Environment interface {
	UserAgent() string
	CurrentURL() string
	// PreviousURL is the referring page as reported by the host, possibly empty.
	PreviousURL() string
	Title() string
}

// Static is an Environment whose values the host sets directly, typically
// from its router on every navigation.
type Static struct {
	mu        sync.RWMutex
	userAgent string
	current   string
	previous  string
	title     string
}

func NewStatic(userAgent string) *Static {
	return &Static{userAgent: userAgent}
}

// Navigate records a move to url, remembering the page we came from.
func (s *Static) Navigate(url, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previous = s.current
	s.current = url
	s.title = title
}

// SetReferrer overrides the previous-page URL, e.g. with document.referrer on first load.
func (s *Static) SetReferrer(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previous = url
}

func (s *Static) UserAgent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userAgent
}

func (s *Static) CurrentURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Static) PreviousURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previous
}

func (s *Static) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}
