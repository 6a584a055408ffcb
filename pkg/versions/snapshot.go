package versions

// Snapshotter durably snapshots store state after mutations. Persistence is
// best-effort: implementations may fail, the store logs and keeps going.
type Snapshotter interface {
	SaveVersions(conversationID string, versions []Version) error
	SaveCursor(conversationID string, cursor int) error
	SaveEditHistory(conversationID string, edits []Edit) error
	Clear(conversationID string) error
}

// Restorer rehydrates previously snapshotted state on initialization.
type Restorer interface {
	LoadVersions(conversationID string) ([]Version, error)
	LoadCursor(conversationID string) (int, error)
	LoadEditHistory(conversationID string) ([]Edit, error)
}

// NopSnapshotter discards all snapshots.
type NopSnapshotter struct{}

func (NopSnapshotter) SaveVersions(string, []Version) error { return nil }
func (NopSnapshotter) SaveCursor(string, int) error         { return nil }
func (NopSnapshotter) SaveEditHistory(string, []Edit) error { return nil }
func (NopSnapshotter) Clear(string) error                   { return nil }

var _ Snapshotter = NopSnapshotter{}
