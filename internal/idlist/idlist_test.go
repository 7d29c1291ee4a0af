package idlist

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slub/qucosa-migrate/internal/testutil"
)

func TestReadSkipsCommentsAndDuplicates(t *testing.T) {
	ids, err := Read(strings.NewReader("# batch 1\n4711\n\n  12 \nqucosa:99\n4711\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"4711", "12", "99"}, ids)
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(strings.NewReader("1\nabc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoad(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "ids.txt", "3\n2\n1\n")

	ids, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "1"}, ids)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
