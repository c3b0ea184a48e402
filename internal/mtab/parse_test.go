package mtab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestParseTableSkipsCommentsAndBlankLines(t *testing.T) {
	path := writeTable(t, "# a comment\n\n/dev/sda1 /mnt/data ext4 defaults 0 2\n")
	entries, err := parseTable(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "/dev/sda1", entries[0].Device)
	require.Equal(t, "/mnt/data", entries[0].MountPoint)
	require.Equal(t, "ext4", entries[0].FSType)
	require.Equal(t, "defaults", entries[0].Options)
}

func TestParseTableUnescapesWhitespace(t *testing.T) {
	path := writeTable(t, `/dev/sdb1 /mnt/My\040Disk vfat noauto 0 0`+"\n")
	entries, err := parseTable(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "/mnt/My Disk", entries[0].MountPoint)
}

func TestParseTableIgnoresShortLines(t *testing.T) {
	path := writeTable(t, "/dev/sda1 /mnt/data\n")
	entries, err := parseTable(path)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestParseTableMissingFile(t *testing.T) {
	_, err := parseTable(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestEntryHasOption(t *testing.T) {
	e := Entry{Options: "noauto,users,ro"}
	require.True(t, e.HasOption("noauto"))
	require.True(t, e.HasOption("users"))
	require.False(t, e.HasOption("auto"))
}
