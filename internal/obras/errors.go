package obras

import "errors"

var ErrNotFound = errors.New("obra not found")
