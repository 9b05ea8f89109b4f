package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCommandAddsExecPrefix(t *testing.T) {
	cmd := BuildCommand("sleep 5", "/tmp/work")
	require.Len(t, cmd.Args, 3)
	assert.Equal(t, "-c", cmd.Args[1])
	assert.Equal(t, "cd '/tmp/work' && exec sleep 5", cmd.Args[2])
	assert.Equal(t, "/tmp/work", cmd.Dir)
}

func TestBuildCommandKeepsUserExec(t *testing.T) {
	cmd := BuildCommand("exec sleep 5", "/tmp/work")
	assert.Equal(t, "cd '/tmp/work' && exec sleep 5", cmd.Args[2])
}

func TestBuildCommandSetsNewProcessGroup(t *testing.T) {
	cmd := BuildCommand("sleep 5", "/tmp")
	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid)
}

func TestBuildCommandQuotesWorkdir(t *testing.T) {
	cmd := BuildCommand("true", "/tmp/it's here")
	assert.Equal(t, `cd '/tmp/it'\''s here' && exec true`, cmd.Args[2])
}
