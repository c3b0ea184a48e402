package mountpoint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func withFakeExists(t *testing.T, taken map[string]bool) {
	t.Helper()
	orig := exists
	exists = func(path string) bool { return taken[path] }
	t.Cleanup(func() { exists = orig })
}

func TestSynthesizePrefersLabel(t *testing.T) {
	withFakeExists(t, nil)
	got, err := Synthesize("/mnt", Candidate{Label: "My Disk", UUID: "1234", Serial: "SN1"})
	require.NoError(t, err)
	require.Equal(t, "/mnt/My_Disk", got)
}

func TestSynthesizeFallsBackToUUIDThenSerial(t *testing.T) {
	withFakeExists(t, nil)

	got, err := Synthesize("/mnt", Candidate{UUID: "abcd-1234"})
	require.NoError(t, err)
	require.Equal(t, "/mnt/abcd-1234", got)

	got, err = Synthesize("/mnt", Candidate{Serial: "SERIAL1"})
	require.NoError(t, err)
	require.Equal(t, "/mnt/SERIAL1", got)
}

func TestSynthesizeNoCandidateFails(t *testing.T) {
	_, err := Synthesize("/mnt", Candidate{})
	require.Error(t, err)
}

func TestSynthesizeAppendsUnderscoreOnCollision(t *testing.T) {
	withFakeExists(t, map[string]bool{
		"/mnt/DATA":  true,
		"/mnt/DATA_": true,
	})
	got, err := Synthesize("/mnt", Candidate{Label: "DATA"})
	require.NoError(t, err)
	require.Equal(t, "/mnt/DATA__", got)
}

func TestSynthesizeGivesUpPastLengthBound(t *testing.T) {
	withFakeExists(t, nil)
	orig := exists
	exists = func(path string) bool { return true }
	t.Cleanup(func() { exists = orig })

	_, err := Synthesize("/mnt", Candidate{Label: "X"})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "length bound"))
}

func TestResolvePrefersAdminTarget(t *testing.T) {
	got, err := Resolve("/mnt", "/mnt/from-fstab", Candidate{Label: "IGNORED"})
	require.NoError(t, err)
	require.Equal(t, "/mnt/from-fstab", got)
}

func TestResolveSynthesizesWhenNoAdminTarget(t *testing.T) {
	withFakeExists(t, nil)
	got, err := Resolve("/mnt", "", Candidate{Label: "DATA"})
	require.NoError(t, err)
	require.Equal(t, "/mnt/DATA", got)
}
