package backend

import (
	"errors"
	"fmt"

	"github.com/jrife/marmot/storage/kv"
)

var (
	// ErrClosed indicates that the store was closed
	ErrClosed = errors.New("store was closed")
)

func wrapError(wrap string, err error) error {
	switch err {
	case kv.ErrClosed:
		return ErrClosed
	case ErrClosed:
		fallthrough
	case nil:
		return err
	}

	return fmt.Errorf("%s: %s", wrap, err)
}
