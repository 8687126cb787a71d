package filesystem

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/filesystem/locking"
)

const (
	// SSFLockFileName is the name of the lock file coordinating access to
	// the SSF data directory.
	SSFLockFileName = ".ssf.lock"

	// SSFDataDirectoryName is the name of the SSF data directory.
	SSFDataDirectoryName = ".ssf"

	// GlobalConfigurationName is the name of the global SSF configuration
	// file inside the user's home directory.
	GlobalConfigurationName = ".ssf.yaml"

	// SSFDaemonDirectoryName is the name of the daemon subdirectory within
	// the SSF data directory.
	SSFDaemonDirectoryName = "daemon"

	// SSFSessionsDirectoryName is the name of the sessions subdirectory
	// within the SSF data directory.
	SSFSessionsDirectoryName = "sessions"

)

// SSFLockFilePath is the path to the lock file coordinating access to the
// SSF data directory. It can be overridden in init functions or entry
// points, but this should be done before any calls to AcquireSSFLock.
var SSFLockFilePath string

// SSFDataDirectoryPath is the path to the SSF data directory. It can be
// overridden in init functions or entry points, but this should be done
// before any calls to SSF.
var SSFDataDirectoryPath string

// SSFConfigurationPath is the path to the global SSF configuration file.
var SSFConfigurationPath string

func init() {
	SSFLockFilePath = filepath.Join(HomeDirectory, SSFLockFileName)
	SSFDataDirectoryPath = filepath.Join(HomeDirectory, SSFDataDirectoryName)
	SSFConfigurationPath = filepath.Join(HomeDirectory, GlobalConfigurationName)
}

// AcquireSSFLock is a convenience function which attempts to acquire the
// SSF data directory lock and returns a locked file locker.
func AcquireSSFLock() (*locking.Locker, error) {
	locker, err := locking.NewLocker(SSFLockFilePath, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create file locker")
	} else if err = locker.Lock(false); err != nil {
		locker.Close()
		return nil, err
	}
	return locker, nil
}

// SSF computes (and optionally creates) subdirectories inside the SSF data
// directory.
func SSF(create bool, pathComponents ...string) (string, error) {
	result := filepath.Join(SSFDataDirectoryPath, filepath.Join(pathComponents...))
	if create {
		if err := os.MkdirAll(result, 0700); err != nil {
			return "", errors.Wrap(err, "unable to create subpath")
		} else if err := MarkHidden(SSFDataDirectoryPath); err != nil {
			return "", errors.Wrap(err, "unable to hide SSF data directory")
		}
	}
	return result, nil
}
