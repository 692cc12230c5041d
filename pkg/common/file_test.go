package common

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/var/lib/nagios/ovn_db_connections.out"
	require.NoError(t, WriteFileAtomic(fs, path, []byte("OK: no issues"), 0644))
	require.NoError(t, WriteFileAtomic(fs, path, []byte("WARNING: RBAC"), 0644))

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "WARNING: RBAC", string(data))
	exists, err := afero.Exists(fs, path+".tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWriteFileAtomicReadOnly(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	assert.Error(t, WriteFileAtomic(fs, "/x/y", []byte("z"), 0644))
}
