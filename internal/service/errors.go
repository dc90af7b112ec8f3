package service

import (
	"errors"

	"eventpos/internal/apierror"
	"eventpos/internal/identity"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// lookupErr translates a repository lookup failure. A missing row becomes
// NotFound carrying the external id; anything else is Internal.
func lookupErr(err error, code, entity string, id int64, family identity.Family) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.NotFound(code, entity, identity.ToExternal(id, family))
	}
	return apierror.Internal(err)
}

// finish is called once per public operation. Business errors pass through
// untouched; unexpected ones are logged with the operation name and returned
// as Internal.
func finish(op string, err error) error {
	if err == nil {
		return nil
	}
	e, ok := apierror.As(err)
	if ok && e.Kind != apierror.KindInternal {
		return err
	}
	log.Error().Err(err).Str("op", op).Msg("operation failed")
	if ok {
		return err
	}
	return apierror.Internal(err)
}
