package location

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadSynthesizesMainWhenMissing(t *testing.T) {
	dir := t.TempDir()
	reg, err := Load(dir)
	require.NoError(t, err)

	p, ok := reg.Path(Main)
	require.True(t, ok)
	abs, _ := filepath.Abs(dir)
	require.Equal(t, abs, p)
}

func TestAddAndResolve(t *testing.T) {
	dir := t.TempDir()
	ssd := t.TempDir()
	reg, err := Load(dir)
	require.NoError(t, err)

	require.NoError(t, reg.Add("SSD", ssd))

	resolved, err := reg.Resolve("SSD/Artist/Album/track_instrumental.mp3")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(ssd, "Artist", "Album", "track_instrumental.mp3"), resolved)
}

func TestAddRejectsDuplicateName(t *testing.T) {
	dir := t.TempDir()
	reg, err := Load(dir)
	require.NoError(t, err)

	require.ErrorIs(t, reg.Add(Main, dir), ErrLocationExists)
}

func TestAddRejectsNonExistentPath(t *testing.T) {
	dir := t.TempDir()
	reg, err := Load(dir)
	require.NoError(t, err)

	require.ErrorIs(t, reg.Add("Ghost", filepath.Join(dir, "nope")), ErrPathInvalid)
}

func TestRemoveRefusesLastLocation(t *testing.T) {
	dir := t.TempDir()
	reg, err := Load(dir)
	require.NoError(t, err)

	require.ErrorIs(t, reg.Remove(Main, true, nil), ErrLastLocation)
}

func TestRemoveRefusesInUseWithoutForce(t *testing.T) {
	dir := t.TempDir()
	ssd := t.TempDir()
	reg, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, reg.Add("SSD", ssd))

	inUse := func(name string) bool { return name == "SSD" }
	require.ErrorIs(t, reg.Remove("SSD", false, inUse), ErrLocationInUse)
	require.NoError(t, reg.Remove("SSD", true, inUse))
}

func TestSplitRejectsEmptyRelativePath(t *testing.T) {
	_, _, err := Split("Main/")
	require.ErrorIs(t, err, ErrMalformedSymbolic)
}

func TestSplitRejectsMissingLocation(t *testing.T) {
	_, _, err := Split("no-slash-here")
	require.ErrorIs(t, err, ErrMalformedSymbolic)
}

func TestResolveUnknownLocation(t *testing.T) {
	dir := t.TempDir()
	reg, err := Load(dir)
	require.NoError(t, err)

	_, err = reg.Resolve("Nope/a/b")
	require.ErrorIs(t, err, ErrUnknownLocation)
}

func TestWithLocationSwapsPrefix(t *testing.T) {
	out, err := WithLocation("Main/Artist/Album/track.mp3", "SSD")
	require.NoError(t, err)
	require.Equal(t, "SSD/Artist/Album/track.mp3", out)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	ssd := t.TempDir()
	reg, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, reg.Add("SSD", ssd))
	require.NoError(t, reg.Save())

	reloaded, err := Load(dir)
	require.NoError(t, err)
	p, ok := reloaded.Path("SSD")
	require.True(t, ok)
	abs, _ := filepath.Abs(ssd)
	require.Equal(t, abs, p)
}
