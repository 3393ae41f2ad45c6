package errors

import "errors"

// ErrOptimisticLock the row changed since it was read (version mismatch).
var ErrOptimisticLock = errors.New("el registro fue modificado por otra operación, recarga e intenta de nuevo")
