package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	original := BuildTime
	defer func() { BuildTime = original }()

	BuildTime = "unknown"
	info := Get()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.Nil(t, info.BuildDate)

	BuildTime = "2026-02-18T09:30:00Z"
	info = Get()

	require.NotNil(t, info.BuildDate)
	assert.Equal(t, 2026, info.BuildDate.Year())
}
