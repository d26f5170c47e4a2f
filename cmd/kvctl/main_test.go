package main

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runKvctl(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func pointAt(t *testing.T, mr *miniredis.Miniredis) {
	t.Helper()
	t.Setenv("KVC_REDIS_TYPE", "STANDALONE")
	t.Setenv("KVC_REDIS_HOST", mr.Host())
	t.Setenv("KVC_REDIS_PORT", mr.Port())
	t.Setenv("KVC_CONNECTION_NAME", "kvctl-test")
	t.Setenv("KVC_READY_TIMEOUT", "5s")
}

func TestCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	pointAt(t, mr)

	out, err := runKvctl(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "STANDALONE kvctl-test: ok")
}

func TestSeed(t *testing.T) {
	mr := miniredis.RunT(t)
	pointAt(t, mr)

	out, err := runKvctl(t, "seed", "--count", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 5 keys (test5=value5)")

	for i := 1; i <= 5; i++ {
		got, err := mr.Get(fmt.Sprintf("test%d", i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("value%d", i), got)
	}
	assert.False(t, mr.Exists("test6"))
}

func TestSeed_KeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	pointAt(t, mr)
	t.Setenv("KVC_KEY_PREFIX", "seed:")

	_, err := runKvctl(t, "seed", "--count", "2")
	require.NoError(t, err)
	assert.True(t, mr.Exists("seed:test2"))
}

func TestSeed_RejectsZeroCount(t *testing.T) {
	_, err := runKvctl(t, "seed", "--count", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--count")
}

func TestCheck_InvalidConfig(t *testing.T) {
	t.Setenv("KVC_REDIS_TYPE", "CLUSTER")

	_, err := runKvctl(t, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestCheck_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	pointAt(t, mr)
	mr.Close()

	_, err := runKvctl(t, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect")
}

func TestVersion(t *testing.T) {
	out, err := runKvctl(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "kvctl v"+version)
}
