package interfaces

import "errors"

// ErrDuplicate is returned by Create operations when a unique index rejects
// the insert. Getters return (nil, nil) for records that do not exist; only
// infrastructure failures surface as errors.
var ErrDuplicate = errors.New("duplicate record")

func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
