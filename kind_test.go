package filesystem

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeKind_Text(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want NodeKind
	}{
		{"file", KindFile},
		{"dir", KindDir},
		{"directory", KindDir},
		{"symlink", KindSymlink},
		{"link", KindSymlink},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var k NodeKind
			require.NoError(t, k.UnmarshalText([]byte(tt.text)))
			assert.Equal(t, tt.want, k)

			out, err := k.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tt.want.String(), string(out))
		})
	}

	var k NodeKind
	assert.Error(t, k.UnmarshalText([]byte("socket")))
	_, err := NodeKind(0).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "unknown", NodeKind(9).String())
}

func TestNodeKind_FileMode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, fs.FileMode(0), KindFile.fileMode())
	assert.Equal(t, fs.ModeDir, KindDir.fileMode())
	assert.Equal(t, fs.ModeSymlink, KindSymlink.fileMode())
}
