package model

import (
	"fmt"

	lmerrors "github.com/vango-dev/livemodel/internal/errors"
)

// Contract violations panic with one of these errors, usually wrapped with
// detail. errors.Is matches by code.
var (
	ErrInvalidProps        error = lmerrors.New("E001")
	ErrInvalidBaseMethod   error = lmerrors.New("E002")
	ErrBaseOutsideBuilder  error = lmerrors.New("E003")
	ErrAbstractMethod      error = lmerrors.New("E004")
	ErrInvalidHydration    error = lmerrors.New("E005")
	ErrUnknownProp         error = lmerrors.New("E101")
	ErrWrapOutsideInjector error = lmerrors.New("E102")
	ErrNotReady            error = lmerrors.New("E103")
	ErrReadonly            error = lmerrors.New("E104")
	ErrMemoOutsideMethod   error = lmerrors.New("E105")
	ErrFamilyUnsupported   error = lmerrors.New("E106")
	ErrUnknownMethod       error = lmerrors.New("E107")
)

func fail(sentinel error, format string, args ...any) {
	panic(sentinel.(*lmerrors.Error).WithDetail(fmt.Sprintf(format, args...)))
}
