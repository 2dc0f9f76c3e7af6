package update

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
)

var errLockBusy = errors.New("lock busy")

// InstallLock is an exclusive cross-process lock on an installation.
type InstallLock struct {
	fl *flock.Flock
}

// AcquireLock takes the lock at path, retrying with exponential backoff until
// timeout elapses. A timeout of zero tries exactly once.
func AcquireLock(ctx context.Context, path string, timeout time.Duration) (*InstallLock, error) {
	fl := flock.New(path)

	try := func() error {
		ok, err := fl.TryLock()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errLockBusy
		}
		return nil
	}

	var err error
	if timeout <= 0 {
		err = try()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	} else {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 50 * time.Millisecond
		b.MaxInterval = time.Second
		b.MaxElapsedTime = timeout
		err = backoff.RetryNotify(try, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
			log.WithField("component", "lock").Debugf("%s is held, retrying in %s", path, next)
		})
	}

	switch {
	case err == nil:
		return &InstallLock{fl: fl}, nil
	case errors.Is(err, errLockBusy):
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	default:
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
}

// Release unlocks the installation.
func (l *InstallLock) Release() error {
	return l.fl.Unlock()
}
