package index

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSampleIndex(t *testing.T) *Index {
	t.Helper()
	idx := New()
	require.NoError(t, idx.AddFile("Main/Artist_A/Album1/Alpha_instrumental.mp3", 4, "instrumental", false, "Artist_A", "Album1", "", "Alpha"))
	require.NoError(t, idx.AddFile("Main/Artist_A/Album1/Alpha_vocals_noreverb.mp3", 4, "vocals", false, "Artist_A", "Album1", "", "Alpha"))
	require.NoError(t, idx.AddFile("Main/Artist_A/Album1/Alpha.mir.json", 2, "mir", false, "Artist_A", "Album1", "", "Alpha"))
	require.NoError(t, idx.AddFile("Main/Artist_B/AlbumX/CD1/Beta_instrumental.mp3", 4, "instrumental", false, "Artist_B", "AlbumX", "CD1", "Beta"))
	require.NoError(t, idx.AddFile("Main/Artist_B/AlbumX/CD2/Gamma_instrumental.mp3", 4, "instrumental", false, "Artist_B", "AlbumX", "CD2", "Gamma"))
	idx.Finalize()
	return idx
}

func TestFinalizeAggregatesStats(t *testing.T) {
	idx := buildSampleIndex(t)

	require.Equal(t, 5, idx.TotalFiles)
	require.Equal(t, int64(18), idx.TotalSize)
	require.Equal(t, 3, idx.StatsByLocation["Main"].Tracks)
	require.Equal(t, 2, idx.StatsByLocation["Main"].Albums)
	require.Equal(t, 2, idx.StatsByLocation["Main"].Artists)

	total := 0
	for _, stats := range idx.StatsByLocation {
		total += stats.Files
	}
	require.Equal(t, idx.TotalFiles, total)
}

func TestHashAgreement(t *testing.T) {
	idx := buildSampleIndex(t)

	for _, t2 := range idx.Tracks {
		for _, paths := range t2.Files {
			for _, p := range paths {
				info, ok := idx.FileInfoByHash[Hash(p)]
				require.True(t, ok)
				require.Equal(t, p, info.Path)
				require.Equal(t, t2.FileSizes[p], info.Size)
			}
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	idx := buildSampleIndex(t)

	payload, err := idx.Encode()
	require.NoError(t, err)

	decoded, err := Decode(payload)
	require.NoError(t, err)

	require.Equal(t, idx.TotalFiles, decoded.TotalFiles)
	require.Equal(t, idx.TotalSize, decoded.TotalSize)
	require.Equal(t, len(idx.Tracks), len(decoded.Tracks))
	for path, track := range idx.Tracks {
		other, ok := decoded.Tracks[path]
		require.True(t, ok)
		require.Equal(t, track.FileSizes, other.FileSizes)
	}
	require.Equal(t, idx.FileInfoByHash, decoded.FileInfoByHash)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte("not-an-index"))
	require.ErrorIs(t, err, ErrCorruptIndex)
}

func TestMissingComponent(t *testing.T) {
	idx := buildSampleIndex(t)
	missing := idx.MissingComponent("vocals")

	require.Len(t, missing, 2)
	names := map[string]bool{}
	for _, tr := range missing {
		names[tr.BaseName] = true
	}
	require.True(t, names["Beta"])
	require.True(t, names["Gamma"])
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx := buildSampleIndex(t)
	require.NoError(t, idx.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, idx.TotalFiles, loaded.TotalFiles)
}

func TestSearchByArtistExactBeforeFuzzy(t *testing.T) {
	idx := buildSampleIndex(t)

	exact := idx.SearchByArtist("Artist_A", false, true)
	require.Equal(t, []string{"Artist_A"}, exact)

	// "artist_c" has no exact/substring match, so fuzzy ranking kicks in
	// and surfaces the close-edit-distance names that do exist.
	fuzzy := idx.SearchByArtist("artist_c", false, true)
	require.Contains(t, fuzzy, "Artist_A")
	require.Contains(t, fuzzy, "Artist_B")

	require.Empty(t, idx.SearchByArtist("zzz_no_match_at_all", false, true))
}
