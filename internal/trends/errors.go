package trends

import "errors"

// ErrRateLimited is returned when the search API answers 429
var ErrRateLimited = errors.New("search rate limited")
