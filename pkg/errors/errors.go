package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents a failed retrieval of the target page
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeClassification represents an unusable classification response
	ErrorTypeClassification ErrorType = "classification"
	// ErrorTypeContentTimeout represents review content that never rendered
	ErrorTypeContentTimeout ErrorType = "content_timeout"
	// ErrorTypeClickIntercepted represents a click blocked by an overlapping element
	ErrorTypeClickIntercepted ErrorType = "click_intercepted"
	// ErrorTypePaginationAbsent represents a missing or unclickable next-page control
	ErrorTypePaginationAbsent ErrorType = "pagination_absent"
	// ErrorTypeExtraction represents any other fault while scraping a page
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeBrowser represents a browser session that could not be started
	ErrorTypeBrowser ErrorType = "browser"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// CrawlerError represents a crawler-specific error
type CrawlerError struct {
	Type    ErrorType
	Target  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *CrawlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Target, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Target, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the error aborts the whole run.
// Only a failed initial fetch does; every other kind is absorbed where it occurs.
func (e *CrawlerError) IsFatal() bool {
	switch e.Type {
	case ErrorTypeFetch, ErrorTypeConfiguration:
		return true
	default:
		return false
	}
}

// New creates a new CrawlerError
func New(errType ErrorType, target, message string, err error) *CrawlerError {
	return &CrawlerError{
		Type:    errType,
		Target:  target,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetch creates a new fetch error
func NewFetch(target, message string, err error) *CrawlerError {
	return New(ErrorTypeFetch, target, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(target, message string, err error) *CrawlerError {
	return New(ErrorTypeParsing, target, message, err)
}

// NewClassification creates a new classification error
func NewClassification(message string, err error) *CrawlerError {
	return New(ErrorTypeClassification, "", message, err)
}

// NewContentTimeout creates a new content timeout error
func NewContentTimeout(target, selector string, timeout time.Duration) *CrawlerError {
	message := fmt.Sprintf("no element matched %q within %v", selector, timeout)
	return New(ErrorTypeContentTimeout, target, message, nil)
}

// NewClickIntercepted creates a new click intercepted error
func NewClickIntercepted(target, message string, err error) *CrawlerError {
	return New(ErrorTypeClickIntercepted, target, message, err)
}

// NewPaginationAbsent creates a new pagination absent error
func NewPaginationAbsent(target, selector string) *CrawlerError {
	return New(ErrorTypePaginationAbsent, target, fmt.Sprintf("no clickable next-page control for %q", selector), nil)
}

// NewExtraction creates a new extraction error
func NewExtraction(target, message string, err error) *CrawlerError {
	return New(ErrorTypeExtraction, target, message, err)
}

// NewBrowser creates a new browser error
func NewBrowser(target, message string, err error) *CrawlerError {
	return New(ErrorTypeBrowser, target, message, err)
}

// NewCache creates a new cache error
func NewCache(message string, err error) *CrawlerError {
	return New(ErrorTypeCache, "", message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(target, message string, err error) *CrawlerError {
	return New(ErrorTypePublisher, target, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlerError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// TypeOf returns the type of the first CrawlerError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var ce *CrawlerError
	if stderrors.As(err, &ce) {
		return ce.Type
	}
	return ""
}

// IsType reports whether err's chain holds a CrawlerError of the given type
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}
