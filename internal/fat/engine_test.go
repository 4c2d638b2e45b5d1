package fat_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpillora/fatvol/errors"
	"github.com/jpillora/fatvol/internal/fat"
	"github.com/jpillora/fatvol/internal/fattest"
)

func names(entries []fat.ListEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestEngine_NewFileThenCat(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	require.NoError(t, engine.NewFile("/greeting", 5))
	require.NoError(t, engine.WriteFile("/greeting", []byte("hello")))

	var buf bytes.Buffer
	require.NoError(t, engine.Cat("/greeting", &buf))
	assert.Equal(t, "hello", buf.String())
}

func TestEngine_NewFileRejectsDuplicate(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	require.NoError(t, engine.NewFile("/a", 1))
	err := engine.NewFile("/a", 1)
	assert.ErrorIs(t, err, errors.ErrFileExists)
}

func TestEngine_NewFileRejectsLongName(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	require.NoError(t, engine.NewFile("/"+string(bytes.Repeat([]byte("a"), 12)), 1))
	err := engine.NewFile("/"+string(bytes.Repeat([]byte("a"), 13)), 1)
	assert.ErrorIs(t, err, errors.ErrFilenameTooLong)
}

func TestEngine_MkdirAndRmdirRoundTrip(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	require.NoError(t, engine.Mkdir("/d"))
	entries, err := engine.Listing("/d")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{".", ".."}, names(entries))

	require.NoError(t, engine.RemoveDir("/d"))
	_, err = engine.Listing("/d")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
}

func TestEngine_MkdirExistingTargetFails(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	require.NoError(t, engine.Mkdir("/d"))
	err := engine.Mkdir("/d")
	assert.ErrorIs(t, err, errors.ErrFileExists)
}

func TestEngine_MkdirMissingParentFails(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	err := engine.Mkdir("/missing/d")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
}

func TestEngine_RmdirNonEmptyFails(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	require.NoError(t, engine.Mkdir("/d"))
	require.NoError(t, engine.NewFile("/d/f", 1))

	err := engine.RemoveDir("/d")
	assert.ErrorIs(t, err, errors.ErrDirNotEmpty)
}

func TestEngine_RemoveRejectsWrongKind(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	require.NoError(t, engine.Mkdir("/d"))
	assert.Error(t, engine.RemoveFile("/d"))

	require.NoError(t, engine.NewFile("/f", 1))
	assert.Error(t, engine.RemoveDir("/f"))
}

func TestEngine_MoveThenMoveBackRestoresContent(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	require.NoError(t, engine.NewFile("/a", 5))
	require.NoError(t, engine.WriteFile("/a", []byte("hello")))

	require.NoError(t, engine.MoveFile("/a", "/b"))
	require.NoError(t, engine.MoveFile("/b", "/a"))

	var buf bytes.Buffer
	require.NoError(t, engine.Cat("/a", &buf))
	assert.Equal(t, "hello", buf.String())
}

func TestEngine_CopyProducesIndependentFile(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	require.NoError(t, engine.NewFile("/a", 5))
	require.NoError(t, engine.WriteFile("/a", []byte("hello")))
	require.NoError(t, engine.Copy("/a", "/b"))

	var bufA, bufB bytes.Buffer
	require.NoError(t, engine.Cat("/a", &bufA))
	require.NoError(t, engine.Cat("/b", &bufB))
	assert.Equal(t, bufA.String(), bufB.String())

	require.NoError(t, engine.RemoveFile("/a"))
	bufB.Reset()
	require.NoError(t, engine.Cat("/b", &bufB))
	assert.Equal(t, "hello", bufB.String(), "copy must survive removal of its source")
}

func TestEngine_FileSpansMultipleClusters(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 512*1024)

	payload := bytes.Repeat([]byte("x"), 10000)
	require.NoError(t, engine.NewFile("/big", uint32(len(payload))))
	require.NoError(t, engine.WriteFile("/big", payload))

	_, chain, err := engine.Info("/big")
	require.NoError(t, err)
	assert.Len(t, chain, 3, "10000 bytes should span three 4096-byte clusters")

	var buf bytes.Buffer
	require.NoError(t, engine.Cat("/big", &buf))
	assert.Equal(t, payload, buf.Bytes())
}

func TestEngine_ListingIncludesDotEntries(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	entries, err := engine.Listing("/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{".", ".."}, names(entries))
}

func TestEngine_BugThenCheckReportsCycle(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	require.NoError(t, engine.NewFile("/f", 1))
	require.NoError(t, engine.Bug("/f"))

	report, err := engine.Check()
	require.NoError(t, err)
	require.NotNil(t, report.Problems)
	assert.Greater(t, report.Problems.Len(), 0)
}

func TestEngine_CheckCleanVolumeReportsNoProblems(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	require.NoError(t, engine.Mkdir("/d"))
	require.NoError(t, engine.NewFile("/d/f", 1))

	report, err := engine.Check()
	require.NoError(t, err)
	assert.Nil(t, report.Problems)
	assert.NotEmpty(t, report.Lines)
}

func TestEngine_FindFileSkipsEmptyPathComponents(t *testing.T) {
	engine := fattest.NewFormattedEngine(t, 256*1024)

	require.NoError(t, engine.Mkdir("/a"))
	require.NoError(t, engine.NewFile("/a/f", 1))

	entries, err := engine.Listing("//a//")
	require.NoError(t, err)
	assert.Contains(t, names(entries), "f")
}
