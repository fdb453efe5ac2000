package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddComponentRejectsDuplicateName(t *testing.T) {
	s := New()
	require.NoError(t, s.AddComponent("vocals", "*_vocals.mp3", false, ""))
	require.ErrorIs(t, s.AddComponent("vocals", "*_other.mp3", false, ""), ErrNameExists)
}

func TestAddComponentRejectsAmbiguousPattern(t *testing.T) {
	s := New()
	require.NoError(t, s.AddComponent("vocals", "*_vocals.mp3", false, ""))
	require.ErrorIs(t, s.AddComponent("dup", "*_vocals.mp3", false, ""), ErrPatternAmbiguous)
}

func TestAddComponentAllowsDistinctExtensions(t *testing.T) {
	s := New()
	require.NoError(t, s.AddComponent("vocals", "*_vocals.mp3", false, ""))
	require.NoError(t, s.AddComponent("vocals_json", "*_vocals.json", false, ""))
}

func TestMatchIsCaseSensitiveOnExtension(t *testing.T) {
	s := New()
	require.NoError(t, s.AddComponent("instrumental", "*_instrumental.mp3", false, ""))

	require.Len(t, s.Match("track_instrumental.mp3"), 1)
	require.Empty(t, s.Match("track_instrumental.MP3"))
}

func TestMatchStripsSuffixForBaseName(t *testing.T) {
	s := New()
	require.NoError(t, s.AddComponent("instrumental", "*_instrumental.mp3", false, ""))

	matches := s.Match("Alpha_instrumental.mp3")
	require.Len(t, matches, 1)
	require.Equal(t, "instrumental", matches[0].Component)
	require.Equal(t, "Alpha", matches[0].BaseName)
}

func TestMatchStripsMultipleSuffixAndDigits(t *testing.T) {
	s := New()
	require.NoError(t, s.AddComponent("section", "*_section*.mp3", true, ""))

	matches := s.Match("Alpha_section02.mp3")
	require.Len(t, matches, 1)
	require.Equal(t, "Alpha", matches[0].BaseName)
}

func TestMergeRemoteOnlyAddsRequestedMissingComponents(t *testing.T) {
	local := New()
	remote := New()
	require.NoError(t, remote.AddComponent("instrumental", "*_instrumental.mp3", false, ""))
	require.NoError(t, remote.AddComponent("vocals", "*_vocals.mp3", false, ""))

	require.NoError(t, local.MergeRemote(remote, []string{"instrumental"}))
	_, hasInstrumental := local.Components["instrumental"]
	_, hasVocals := local.Components["vocals"]
	require.True(t, hasInstrumental)
	require.False(t, hasVocals)
}

func TestMergeRemoteNeverOverwritesLocal(t *testing.T) {
	local := New()
	require.NoError(t, local.AddComponent("instrumental", "*_instrumental_v2.mp3", false, ""))
	remote := New()
	require.NoError(t, remote.AddComponent("instrumental", "*_instrumental.mp3", false, ""))

	err := local.MergeRemote(remote, []string{"instrumental"})
	require.ErrorIs(t, err, ErrSchemaConflict)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New()
	require.NoError(t, s.AddComponent("caption", "*_caption.txt", false, "song caption"))
	require.NoError(t, s.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, s.Components, loaded.Components)
}
