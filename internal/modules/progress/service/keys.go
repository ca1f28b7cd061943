package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	ProgressKey      = "reltone.progress"
	BackupKey        = "reltone.progress.backup"
	CorruptKeyPrefix = "reltone.progress.corrupt."
	ArchiveKeyPrefix = "reltone.archive."
)

// PendingKey holds the base note drawn for the next session so a later
// process records over the same note.
const PendingKey = "reltone.pending"

func corruptKey(at time.Time) string {
	return fmt.Sprintf("%s%d", CorruptKeyPrefix, at.UnixNano())
}

func archiveKey(at time.Time) string {
	return fmt.Sprintf("%s%d", ArchiveKeyPrefix, at.UnixNano())
}

// archiveTime recovers the timestamp encoded in an archive key.
func archiveTime(key string) (time.Time, bool) {
	raw, ok := strings.CutPrefix(key, ArchiveKeyPrefix)
	if !ok {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, nanos).UTC(), true
}

func pendingValue(cycleID string, sessionID int, note string) string {
	return fmt.Sprintf("%s|%d|%s", cycleID, sessionID, note)
}

// parsePending returns the stored note when it was drawn for the given
// cycle and session.
func parsePending(raw, cycleID string, sessionID int) (string, bool) {
	parts := strings.Split(raw, "|")
	if len(parts) != 3 || parts[0] != cycleID || parts[1] != strconv.Itoa(sessionID) || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
