package update

import (
	"path/filepath"
	"strings"
)

// Default file names inside an installation root.
const (
	DefaultClientBinary = "memate.exe"
	InstalledStateFile  = "installedVersions.properties"
	StagedStateFile     = "version.properties"
	RuntimeArchiveFile  = "jre.zip"
	LockFile            = ".launcher.lock"
	LogFile             = "launcher.log"
	HistoryDir          = "history"
	stagingDir          = ".staging"
	clientStagingSuffix = ".new"
)

// Layout resolves the well-known paths of an installation.
type Layout struct {
	Root         string
	ClientBinary string
}

// NewLayout returns the layout for root. An empty clientBinary selects memate.exe.
func NewLayout(root, clientBinary string) Layout {
	if clientBinary == "" {
		clientBinary = DefaultClientBinary
	}
	return Layout{Root: filepath.Clean(root), ClientBinary: clientBinary}
}

func (l Layout) InstalledState() string { return filepath.Join(l.Root, InstalledStateFile) }
func (l Layout) StagedState() string    { return filepath.Join(l.Root, StagedStateFile) }
func (l Layout) Client() string         { return filepath.Join(l.Root, l.ClientBinary) }
func (l Layout) ClientStaging() string  { return l.Client() + clientStagingSuffix }
func (l Layout) RuntimeArchive() string { return filepath.Join(l.Root, RuntimeArchiveFile) }
func (l Layout) Lock() string           { return filepath.Join(l.Root, LockFile) }
func (l Layout) Log() string            { return filepath.Join(l.Root, LogFile) }
func (l Layout) History() string        { return filepath.Join(l.Root, HistoryDir) }
func (l Layout) Staging() string        { return filepath.Join(l.Root, stagingDir) }
func (l Layout) RuntimeStaging() string { return filepath.Join(l.Staging(), "runtime") }
func (l Layout) RuntimeBackup() string  { return filepath.Join(l.Staging(), "previous") }

// RuntimeDir is the installed runtime folder named by a descriptor.
func (l Layout) RuntimeDir(folderName string) string {
	return filepath.Join(l.Root, folderName)
}

// reserved reports whether name is a launcher-owned top-level entry that a
// runtime archive must not replace. Names compare case-insensitively, as on
// Windows.
func (l Layout) reserved(name string) bool {
	for _, r := range []string{
		l.ClientBinary, filepath.Base(l.ClientStaging()), l.ClientBinary + backupSuffix,
		InstalledStateFile, StagedStateFile, RuntimeArchiveFile,
		LockFile, LogFile, HistoryDir, stagingDir,
	} {
		if strings.EqualFold(name, r) {
			return true
		}
	}
	return false
}
